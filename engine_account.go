package webster

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/babymilooo/webster-backend/password"
)

const (
	defaultUserName = "user"
	defaultRole     = "user"
)

// RegisterRequest carries the fields accepted at registration.
type RegisterRequest struct {
	Email    string
	Password string
	UserName string
}

// Register creates an account with an unverified email. It does not start
// a session.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	email, err := validEmail(req.Email)
	if err != nil {
		return Identity{}, err
	}
	hash, err := e.hashNewPassword(req.Password)
	if err != nil {
		return Identity{}, err
	}
	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = defaultUserName
	}

	created, err := e.store.Create(ctx, Identity{
		Email:        email,
		UserName:     userName,
		PasswordHash: hash,
		Role:         defaultRole,
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", ErrAccountExists, nil)
			return Identity{}, ErrAccountExists
		}
		return Identity{}, e.storeFailure(ctx, "create", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, created.ID, nil, nil)
	return created.Sanitized(), nil
}

// ChangePassword replaces the password of userID after checking current,
// then revokes refreshToken so the caller has to log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", ErrInvalidInput)
	}
	hash, err := e.hashNewPassword(next)
	if err != nil {
		return err
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return e.storeFailure(ctx, "change password lookup", err)
	}

	ok := false
	if identity.PasswordHash != "" {
		ok, _ = e.hasher.Verify(current, identity.PasswordHash)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}

	if err := e.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return e.storeFailure(ctx, "update password", err)
	}
	if err := e.revoke(ctx, refreshToken); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, nil, nil)
	return nil
}

// DeleteAccount removes userID and revokes refreshToken.
func (e *Engine) DeleteAccount(ctx context.Context, userID, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return e.storeFailure(ctx, "delete", err)
	}
	if err := e.revoke(ctx, refreshToken); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, nil, nil)
	return nil
}

// UpdateProfile applies a partial profile edit. Changing the email clears
// the verified flag.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, e.storeFailure(ctx, "profile lookup", err)
	}

	profile := Profile{
		UserName:      identity.UserName,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
	}
	if upd.UserName != nil {
		name := strings.TrimSpace(*upd.UserName)
		if name == "" {
			return Identity{}, fmt.Errorf("%w: userName must not be empty", ErrInvalidInput)
		}
		profile.UserName = name
	}
	if upd.Email != nil {
		email, err := validEmail(*upd.Email)
		if err != nil {
			return Identity{}, err
		}
		if email != identity.Email {
			profile.Email = email
			profile.EmailVerified = false
		}
	}

	updated, err := e.store.UpdateProfile(ctx, userID, profile)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountExists):
			return Identity{}, ErrAccountExists
		case errors.Is(err, ErrUserNotFound):
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, e.storeFailure(ctx, "update profile", err)
	}

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, userID, nil, func() map[string]string {
		return map[string]string{"email_changed": fmt.Sprint(profile.Email != identity.Email)}
	})
	return updated.Sanitized(), nil
}

// UserInfo returns the caller's own account without credential material.
func (e *Engine) UserInfo(ctx context.Context, userID string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}
	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, e.storeFailure(ctx, "user info", err)
	}
	return identity.Sanitized(), nil
}

// PublicProfile returns what any visitor may see about userID.
func (e *Engine) PublicProfile(ctx context.Context, userID string) (PublicProfile, error) {
	identity, err := e.UserInfo(ctx, userID)
	if err != nil {
		return PublicProfile{}, err
	}
	return identity.Public(), nil
}

func (e *Engine) checkNewPassword(pw string) error {
	if err := e.config.Password.Policy.Check(pw); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	return nil
}

func (e *Engine) hashNewPassword(pw string) (string, error) {
	if err := e.checkNewPassword(pw); err != nil {
		return "", err
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) || errors.Is(err, password.ErrEmpty) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func validEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return email, nil
}
