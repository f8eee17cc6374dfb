package webster

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/babymilooo/webster-backend/internal/limiters"
	"github.com/babymilooo/webster-backend/mail"
	"github.com/babymilooo/webster-backend/token"
)

const passwordResetPath = "/auth/password-reset/"

// RequestPasswordReset mails a reset link to email. Like
// [Engine.RequestEmailVerification] it never reveals whether the account
// exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}
	email, err := validEmail(email)
	if err != nil {
		return err
	}

	if err := e.resetLimiter.CheckRequest(ctx, email, ClientIPFromContext(ctx)); err != nil {
		return e.resetThrottled(ctx, "password_reset_request", email, err)
	}
	e.metricInc(MetricPasswordResetRequest)

	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.log(ctx).Error("identity store failure", "op", "reset lookup", "err", err)
		}
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true"}
		})
		return nil
	}
	if identity.PasswordHash == "" {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, identity.ID, nil, func() map[string]string {
			return map[string]string{"noop": "no_password"}
		})
		return nil
	}

	if err := e.sendPasswordReset(ctx, identity); err != nil {
		e.metricInc(MetricMailFailure)
		e.log(ctx).Error("password reset email not sent", "user_id", identity.ID, "err", err)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, identity.ID, err, nil)
		return nil
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, identity.ID, nil, nil)
	return nil
}

func (e *Engine) sendPasswordReset(ctx context.Context, identity Identity) error {
	tok, err := e.codec.Sign(token.PasswordReset, token.Payload{
		token.ClaimSubject:        identity.ID,
		token.ClaimPasswordAnchor: e.passwordAnchor(identity.PasswordHash),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	msg, err := mail.PasswordResetMessage(identity.Email, mail.LinkData{
		Product:   e.config.ProductName,
		UserName:  identity.UserName,
		Link:      buildLink(e.config.PasswordReset.LinkBaseURL, passwordResetPath, tok),
		ExpiresIn: e.codec.Expiry(token.PasswordReset),
	})
	if err != nil {
		return err
	}
	return e.mailer.Send(ctx, msg)
}

// ConfirmPasswordReset sets a new password using a reset token.
//
// The token is bound to the password hash current at issuance, so it stops
// working as soon as the password changes by any path; a second redemption
// yields [ErrAlreadyUsed]. Existing sessions are not revoked.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, raw, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := e.checkNewPassword(newPassword); err != nil {
		return err
	}

	if err := e.resetLimiter.CheckConfirm(ctx, ClientIPFromContext(ctx)); err != nil {
		return e.resetThrottled(ctx, "password_reset_confirm", "", err)
	}

	userID, payload, err := e.verifySingleUse(ctx, token.PasswordReset, raw)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", err, nil)
		return err
	}
	anchor, _ := payload.String(token.ClaimPasswordAnchor)

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return e.storeFailure(ctx, "reset lookup", err)
	}

	if !e.anchorMatches(anchor, identity.PasswordHash) {
		return e.resetReplayed(ctx, userID)
	}

	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	// The swap only lands while the stored hash is still the one the token
	// was anchored to, so concurrent redemptions cannot both succeed.
	if err := e.store.SwapPasswordHash(ctx, userID, identity.PasswordHash, hash); err != nil {
		switch {
		case errors.Is(err, ErrStaleWrite):
			return e.resetReplayed(ctx, userID)
		case errors.Is(err, ErrUserNotFound):
			return ErrUserNotFound
		}
		return e.storeFailure(ctx, "reset update", err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, nil, nil)
	return nil
}

func (e *Engine) resetReplayed(ctx context.Context, userID string) error {
	e.metricInc(MetricPasswordResetReplay)
	e.emitAudit(ctx, auditEventPasswordResetReplay, false, userID, ErrAlreadyUsed, nil)
	return ErrAlreadyUsed
}

func (e *Engine) resetThrottled(ctx context.Context, scope, email string, err error) error {
	if errors.Is(err, limiters.ErrResetRateLimited) {
		if scope == "password_reset_confirm" {
			e.metricInc(MetricPasswordResetConfirmFailure)
		}
		e.emitRateLimit(ctx, scope, email)
		return ErrRateLimited
	}
	e.log(ctx).Error("reset limiter unavailable", "err", err)
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// passwordAnchor derives the reset-token claim from a password hash. The
// hash itself never leaves the store.
func (e *Engine) passwordAnchor(passwordHash string) string {
	mac := hmac.New(sha256.New, e.config.Tokens.PasswordResetSecret)
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil))
}

func (e *Engine) anchorMatches(anchor, passwordHash string) bool {
	if anchor == "" || passwordHash == "" {
		return false
	}
	return hmac.Equal([]byte(anchor), []byte(e.passwordAnchor(passwordHash)))
}
