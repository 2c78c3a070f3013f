// Kirogate serves OpenAI- and Anthropic-compatible chat APIs backed by a
// pool of Kiro accounts.
//
// It accepts chat requests in either protocol, translates them to the
// upstream assistant payload, streams the binary event-stream answer back
// and converts it into the caller's wire format.
//
// Usage:
//
//	# Start the gateway with config.yaml from the working directory
//	kirogate run
//
//	# Start with a custom configuration file
//	kirogate run --config /etc/kirogate/config.yaml
//
//	# Import accounts from a Kiro IDE token file
//	kirogate accounts import ~/.aws/sso/cache/kiro-auth-token.json
//
//	# Show the pool
//	kirogate accounts list --output json
//
//	# Show how a model name resolves
//	kirogate models resolve claude-sonnet-4-thinking
package main

func main() {
	Execute()
}
