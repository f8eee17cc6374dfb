package webster

import "errors"

var (
	// ErrUnauthorized is the uniform rejection for a missing, forged, expired
	// or revoked session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login when the password does not match.
	ErrInvalidCredentials = errors.New("email or password is invalid")
	// ErrUserNotFound is returned when an identity lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrStaleWrite is returned by [IdentityStore.SwapPasswordHash] when the
	// stored hash no longer matches the expected one.
	ErrStaleWrite = errors.New("identity changed since it was read")
	// ErrAccountExists is returned when an email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidInput covers missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicy is returned when a new password fails the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordMismatch is returned by ChangePassword when the current password is wrong.
	ErrPasswordMismatch = errors.New("current password is invalid")
	// ErrTokenInvalid is returned when a single-use token fails verification.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrAlreadyUsed is returned when a password-reset token was already redeemed.
	ErrAlreadyUsed = errors.New("token is already used")
	// ErrRateLimited is returned when a throttle window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRevocationUnavailable is returned when the revocation backend cannot answer.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
	// ErrBackendUnavailable is returned when a throttle or store backend fails.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSessionCreationFailed is returned when minting a token fails.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrConfig reports an invalid or incomplete configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrEmailVerificationDisabled is returned when the verification flow is off.
	ErrEmailVerificationDisabled = errors.New("email verification disabled")
	// ErrPasswordResetDisabled is returned when the reset flow is off.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrTicketsDisabled is returned when no action-ticket secret is configured.
	ErrTicketsDisabled = errors.New("action tickets disabled")
)
