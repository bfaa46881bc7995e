// Package recording turns proxied exchanges into mappings that replay them.
package recording

import (
	"time"

	"github.com/getmockd/mockrelay/internal/id"
	"github.com/getmockd/mockrelay/pkg/exchange"
)

// Recording is one proxied exchange as observed on the wire.
type Recording struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Inbound is the request received from the client.
	Inbound *exchange.Request `json:"-"`

	// Outbound is the request as forwarded, after exclusion filtering.
	Outbound *exchange.Request `json:"-"`

	// Response is the upstream response before relay processing.
	Response *exchange.Response `json:"-"`

	// Upstream is the full URL the request was sent to.
	Upstream string `json:"upstream"`

	Duration time.Duration `json:"duration"`
}

// NewRecording creates a recording with a unique ID. Inputs are copied.
func NewRecording(inbound, outbound *exchange.Request, resp *exchange.Response, upstream string, duration time.Duration) *Recording {
	return &Recording{
		ID:        id.Short(),
		Timestamp: time.Now(),
		Inbound:   inbound.Clone(),
		Outbound:  outbound.Clone(),
		Response:  resp.Clone(),
		Upstream:  upstream,
		Duration:  duration,
	}
}
