// Package wagate abstracts the third-party WhatsApp messaging API behind
// a small port so delivery failures never surface as errors to the
// workflow code that triggers them.
package wagate

import "context"

// Device describes the remote WhatsApp device/session state.
type Device struct {
	Online bool   `json:"online"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// SendResult is the structured outcome of a delivery attempt. A failed
// attempt is data, not an error: transport problems, missing credentials,
// and vendor rejections all land here with Accepted=false.
type SendResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

// Gateway is the outbound messaging port. Implementations must not
// return transport errors from Send; DeviceStatus may, since it is a
// diagnostic call.
type Gateway interface {
	DeviceStatus(ctx context.Context) (*Device, error)
	Send(ctx context.Context, phone, message string) *SendResult
}

// Noop is a Gateway that accepts nothing. Used when no credentials are
// configured and as a default in tests.
type Noop struct{}

func (Noop) DeviceStatus(ctx context.Context) (*Device, error) {
	return &Device{Online: false}, nil
}

func (Noop) Send(ctx context.Context, phone, message string) *SendResult {
	return &SendResult{Accepted: false, Reason: "gateway disabled"}
}
