package handlers

import (
	"context"

	"kiro-hq/gateway/pkg/gateway"
	"kiro-hq/gateway/pkg/translate"
)

// Orchestrator runs public requests against the upstream. It is satisfied
// by *gateway.Gateway.
type Orchestrator interface {
	Prepare(ctx context.Context, in *gateway.Inbound) (*gateway.Call, error)
	Complete(ctx context.Context, call *gateway.Call, c translate.Collector) ([]byte, error)
	Stream(ctx context.Context, call *gateway.Call, s translate.Stream) error
}
