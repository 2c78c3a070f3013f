// Package eventstream decodes the binary, length-prefixed event stream the
// upstream chat API returns and turns it into typed events.
//
// # Frame Layout
//
// Every frame is laid out as:
//
//	u32 total_length | u32 headers_length | u32 prelude_crc
//	headers (headers_length bytes)
//	payload (total_length - 16 - headers_length bytes)
//	u32 message_crc
//
// Headers are (u8 name_len, name, u8 type, value) tuples. Only string
// headers are used (":event-type", ":content-type", ":message-type"); the
// other types are skipped by their fixed or declared length so the cursor
// stays aligned.
//
// A frame whose content type is "application/vnd.amazon.eventstream" wraps
// another frame and is unwrapped in place. Payloads starting with the gzip
// magic bytes are inflated before being parsed as JSON.
//
// # Events
//
// The Decoder emits Event values through a callback in the order frames are
// completed. Tool calls are tracked one at a time: the first frame for a new
// tool-use id emits KindToolStart, every input fragment emits KindToolInput
// and KindToolEnd is emitted when a different id shows up, when the upstream
// marks the call stopped, or when Finish is called.
package eventstream
