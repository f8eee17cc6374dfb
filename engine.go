package webster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/babymilooo/webster-backend/internal/audit"
	"github.com/babymilooo/webster-backend/internal/limiters"
	"github.com/babymilooo/webster-backend/internal/logctx"
	"github.com/babymilooo/webster-backend/password"
	"github.com/babymilooo/webster-backend/revocation"
	"github.com/babymilooo/webster-backend/session"
	"github.com/babymilooo/webster-backend/token"
)

// Engine issues, verifies and revokes session tokens and runs the account
// flows built on them. It is immutable after Build and safe for concurrent
// use.
type Engine struct {
	config   Config
	store    IdentityStore
	hasher   password.Hasher
	mailer   Mailer
	codec    *token.Codec
	registry revocation.Registry
	issuer   *session.Issuer
	cookies  session.Cookies
	logger   *slog.Logger
	metrics  *Metrics
	audit    *audit.Dispatcher
	now      func() time.Time

	loginLimiter        *limiters.LoginLimiter
	verificationLimiter *limiters.EmailVerificationLimiter
	resetLimiter        *limiters.PasswordResetLimiter
}

// Close drains pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events never reached the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Cookies returns the cookie writer shared by every handler, so that set and
// clear always use identical attributes.
func (e *Engine) Cookies() session.Cookies {
	return e.cookies
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if rid := logctx.RequestID(ctx); rid != "" {
		return e.logger.With("request_id", rid)
	}
	return e.logger
}

// Login checks email and password and starts a new session.
//
// An unknown email yields [ErrUserNotFound], an account without a password
// (for example one registered through Google) yields [ErrInvalidInput] and a
// wrong password yields [ErrInvalidCredentials]. The returned identity carries
// no password hash.
func (e *Engine) Login(ctx context.Context, email, pw string) (Identity, session.Pair, error) {
	if e == nil || e.store == nil {
		return Identity{}, session.Pair{}, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return Identity{}, session.Pair{}, ErrInvalidInput
	}
	ip := ClientIPFromContext(ctx)

	if err := e.loginLimiter.Check(ctx, email, ip); err != nil {
		return Identity{}, session.Pair{}, e.loginThrottled(ctx, email, err)
	}

	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrUserNotFound, nil)
			return Identity{}, session.Pair{}, ErrUserNotFound
		}
		return Identity{}, session.Pair{}, e.storeFailure(ctx, "login lookup", err)
	}
	if identity.PasswordHash == "" {
		return Identity{}, session.Pair{}, fmt.Errorf("%w: account has no password", ErrInvalidInput)
	}

	ok, err := e.hasher.Verify(pw, identity.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		e.log(ctx).Error("password verification failed", "user_id", identity.ID, "err", err)
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, ErrInvalidCredentials, nil)
		if err := e.loginLimiter.Failure(ctx, email, ip); err != nil {
			if errors.Is(err, limiters.ErrLoginRateLimited) {
				return Identity{}, session.Pair{}, e.loginThrottled(ctx, email, err)
			}
			e.log(ctx).Warn("login limiter unavailable", "err", err)
		}
		return Identity{}, session.Pair{}, ErrInvalidCredentials
	}

	if err := e.loginLimiter.Success(ctx, email); err != nil {
		e.log(ctx).Warn("login limiter reset failed", "err", err)
	}
	e.upgradeHash(ctx, identity, pw)

	pair, err := e.issuer.Login(identity.ID)
	if err != nil {
		e.log(ctx).Error("session mint failed", "user_id", identity.ID, "err", err)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, ErrSessionCreationFailed, nil)
		return Identity{}, session.Pair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, nil, nil)
	return identity.Sanitized(), pair, nil
}

func (e *Engine) loginThrottled(ctx context.Context, email string, err error) error {
	if errors.Is(err, limiters.ErrLoginRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrRateLimited, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// upgradeHash rewrites a legacy or weaker hash after a successful login.
// Failures are logged; the login itself already succeeded.
func (e *Engine) upgradeHash(ctx context.Context, identity Identity, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	rehasher, ok := e.hasher.(interface{ NeedsRehash(string) bool })
	if !ok || !rehasher.NeedsRehash(identity.PasswordHash) {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		e.log(ctx).Warn("password rehash failed", "user_id", identity.ID, "err", err)
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		e.log(ctx).Warn("password rehash not stored", "user_id", identity.ID, "err", err)
	}
}

// Refresh verifies refreshToken, reloads the account and mints a new access
// token. The refresh token itself is returned unchanged.
//
// Any verification failure, including revocation and a deleted account,
// collapses to [ErrUnauthorized]. A revocation backend failure is reported as
// [ErrRevocationUnavailable].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (Identity, session.Pair, error) {
	if e == nil || e.store == nil {
		return Identity{}, session.Pair{}, ErrEngineNotReady
	}

	userID, _, err := e.verifySession(ctx, token.Refresh, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, nil)
		return Identity{}, session.Pair{}, err
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrUserNotFound, nil)
			return Identity{}, session.Pair{}, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return Identity{}, session.Pair{}, e.storeFailure(ctx, "refresh lookup", err)
	}

	pair, err := e.issuer.Refresh(identity.ID, refreshToken)
	if err != nil {
		e.log(ctx).Error("access mint failed", "user_id", identity.ID, "err", err)
		return Identity{}, session.Pair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, identity.ID, nil, nil)
	return identity.Sanitized(), pair, nil
}

// Authenticate verifies an access token and returns its principal. Every
// failure is reported as [ErrUnauthorized].
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	if e == nil || e.codec == nil {
		return Principal{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	userID, payload, err := e.verifySession(ctx, token.Access, accessToken)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return Principal{}, err
	}

	e.metricInc(MetricAuthenticateSuccess)
	return Principal{
		UserID:   userID,
		TokenID:  payload.TokenID(),
		IssuedAt: issuedAt(payload),
	}, nil
}

// RotateAccess mints a new access token for userID from a refresh token
// that must itself verify and belong to the same user.
func (e *Engine) RotateAccess(ctx context.Context, userID, refreshToken string) (session.Pair, error) {
	if e == nil || e.issuer == nil {
		return session.Pair{}, ErrEngineNotReady
	}

	subject, _, err := e.verifySession(ctx, token.Refresh, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return session.Pair{}, err
	}
	if subject != userID {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "subject_mismatch"}
		})
		return session.Pair{}, fmt.Errorf("%w: refresh token belongs to another identity", ErrUnauthorized)
	}

	pair, err := e.issuer.Refresh(userID, refreshToken)
	if err != nil {
		e.log(ctx).Error("access mint failed", "user_id", userID, "err", err)
		return session.Pair{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricRefreshSuccess)
	return pair, nil
}

// Logout revokes refreshToken. Revoking an empty or already revoked token
// succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.issuer == nil {
		return ErrEngineNotReady
	}
	if err := e.revoke(ctx, refreshToken); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", err, nil)
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, nil)
	return nil
}

func (e *Engine) revoke(ctx context.Context, refreshToken string) error {
	if err := e.issuer.Logout(ctx, refreshToken); err != nil {
		e.metricInc(MetricRevocationUnavailable)
		e.log(ctx).Error("refresh revocation failed", "err", err)
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// verifySession verifies a session token of kind and returns its subject.
func (e *Engine) verifySession(ctx context.Context, kind token.Kind, raw string) (string, token.Payload, error) {
	if raw == "" {
		return "", nil, fmt.Errorf("%w: missing %s token", ErrUnauthorized, kind)
	}
	payload, err := e.codec.Verify(ctx, kind, raw)
	if err != nil {
		return "", nil, mapSessionErr(err)
	}
	subject, err := payload.Subject()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return subject, payload, nil
}

func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, token.ErrRevocationUnavailable):
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	case errors.Is(err, token.ErrConfig):
		return fmt.Errorf("%w: %v", ErrConfig, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
}

func (e *Engine) storeFailure(ctx context.Context, op string, err error) error {
	e.log(ctx).Error("identity store failure", "op", op, "err", err)
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func issuedAt(p token.Payload) time.Time {
	switch v := p["iat"].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
