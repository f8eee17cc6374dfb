package webster

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/babymilooo/webster-backend/internal/limiters"
	"github.com/babymilooo/webster-backend/mail"
	"github.com/babymilooo/webster-backend/token"
)

const verifyEmailPath = "/auth/verify-email/"

// RequestEmailVerification mails a verification link to email.
//
// The result does not reveal whether the account exists: an unknown or
// already verified address returns nil without sending anything, and a
// delivery failure is logged rather than returned. Only a malformed email
// ([ErrInvalidInput]) and throttling ([ErrRateLimited]) are reported.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}
	email, err := validEmail(email)
	if err != nil {
		return err
	}
	if err := e.throttleVerification(ctx, email); err != nil {
		return err
	}
	e.metricInc(MetricEmailVerificationRequest)

	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.log(ctx).Error("identity store failure", "op", "verification lookup", "err", err)
		}
		e.emitAudit(ctx, auditEventEmailVerificationRequest, true, "", nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true"}
		})
		return nil
	}

	if err := e.sendVerification(ctx, identity); err != nil {
		e.metricInc(MetricMailFailure)
		e.log(ctx).Error("verification email not sent", "user_id", identity.ID, "err", err)
	}
	return nil
}

// SendVerificationEmail mails a verification link to the authenticated
// user's own address. Unlike [Engine.RequestEmailVerification] it reports
// delivery failures.
func (e *Engine) SendVerificationEmail(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return e.storeFailure(ctx, "verification lookup", err)
	}
	if err := e.throttleVerification(ctx, identity.Email); err != nil {
		return err
	}
	e.metricInc(MetricEmailVerificationRequest)

	if err := e.sendVerification(ctx, identity); err != nil {
		e.metricInc(MetricMailFailure)
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (e *Engine) throttleVerification(ctx context.Context, email string) error {
	err := e.verificationLimiter.CheckRequest(ctx, email, ClientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrVerificationRateLimited):
		e.metricInc(MetricEmailVerificationFailure)
		e.emitRateLimit(ctx, "email_verification_request", email)
		return ErrRateLimited
	default:
		e.log(ctx).Error("verification limiter unavailable", "err", err)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

// sendVerification is a no-op for an already verified identity.
func (e *Engine) sendVerification(ctx context.Context, identity Identity) error {
	if identity.EmailVerified {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, true, identity.ID, nil, func() map[string]string {
			return map[string]string{"noop": "already_verified"}
		})
		return nil
	}

	tok, err := e.codec.Sign(token.EmailVerification, token.Payload{token.ClaimSubject: identity.ID})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	msg, err := mail.VerificationMessage(identity.Email, mail.LinkData{
		Product:   e.config.ProductName,
		UserName:  identity.UserName,
		Link:      buildLink(e.config.EmailVerification.LinkBaseURL, verifyEmailPath, tok),
		ExpiresIn: e.codec.Expiry(token.EmailVerification),
	})
	if err != nil {
		return err
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, identity.ID, err, nil)
		return err
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, identity.ID, nil, nil)
	return nil
}

// ConfirmEmailVerification redeems a verification token and marks the
// account verified. Redeeming a token again is harmless: the flag is already
// set and the same identity is returned.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, raw string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}
	if !e.config.EmailVerification.Enabled {
		return Identity{}, ErrEmailVerificationDisabled
	}

	userID, _, err := e.verifySingleUse(ctx, token.EmailVerification, raw)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", err, nil)
		return Identity{}, err
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, userID, ErrUserNotFound, nil)
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, e.storeFailure(ctx, "verification confirm lookup", err)
	}

	if !identity.EmailVerified {
		if err := e.store.MarkEmailVerified(ctx, userID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return Identity{}, ErrUserNotFound
			}
			return Identity{}, e.storeFailure(ctx, "mark verified", err)
		}
		identity.EmailVerified = true
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, userID, nil, nil)
	return identity.Sanitized(), nil
}

// verifySingleUse verifies an emailed token. Every failure is reported as
// [ErrTokenInvalid].
func (e *Engine) verifySingleUse(ctx context.Context, kind token.Kind, raw string) (string, token.Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	payload, err := e.codec.Verify(ctx, kind, raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	subject, err := payload.Subject()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return subject, payload, nil
}

func buildLink(base, path, tok string) string {
	return strings.TrimRight(base, "/") + path + url.PathEscape(tok)
}
