package webster

import (
	"context"
	"errors"
	"fmt"

	"github.com/babymilooo/webster-backend/token"
)

// IssueActionTicket signs payload as an action ticket, for example the
// content of a printed QR code. The reserved claims of [token.Payload] are
// overwritten.
func (e *Engine) IssueActionTicket(payload token.Payload) (string, error) {
	if e == nil || e.codec == nil {
		return "", ErrEngineNotReady
	}
	if !e.codec.Configured(token.ActionTicket) {
		return "", ErrTicketsDisabled
	}
	tok, err := e.codec.Sign(token.ActionTicket, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricTicketIssued)
	return tok, nil
}

// VerifyActionTicket verifies a ticket and returns its payload. Any
// verification failure is reported as [ErrTokenInvalid].
func (e *Engine) VerifyActionTicket(ctx context.Context, raw string) (token.Payload, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if !e.codec.Configured(token.ActionTicket) {
		return nil, ErrTicketsDisabled
	}
	payload, err := e.codec.Verify(ctx, token.ActionTicket, raw)
	if err != nil {
		if errors.Is(err, token.ErrConfig) {
			return nil, ErrTicketsDisabled
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	e.metricInc(MetricTicketVerified)
	return payload, nil
}
