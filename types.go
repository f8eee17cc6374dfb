package webster

//go:generate mockgen -destination=internal/mocks/mocks.go -package=mocks github.com/babymilooo/webster-backend Mailer,IdentityStore

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/babymilooo/webster-backend/internal/audit"
	"github.com/babymilooo/webster-backend/mail"
)

// Identity is a stored user account.
//
// PasswordHash is empty for accounts registered through a third-party
// provider; such accounts cannot log in with a password.
type Identity struct {
	ID                  string
	Email               string
	UserName            string
	PasswordHash        string
	EmailVerified       bool
	Role                string
	ProfilePicture      string
	RegisteredViaGoogle bool
	CreatedAt           time.Time
}

// Sanitized returns a copy without credential material.
func (i Identity) Sanitized() Identity {
	i.PasswordHash = ""
	return i
}

// Public returns the subset of the identity other users may see.
func (i Identity) Public() PublicProfile {
	return PublicProfile{
		ID:             i.ID,
		UserName:       i.UserName,
		ProfilePicture: i.ProfilePicture,
	}
}

// PublicProfile is the anonymous view of an account.
type PublicProfile struct {
	ID             string `json:"_id"`
	UserName       string `json:"userName"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Profile holds the user-editable fields written by [IdentityStore.UpdateProfile].
type Profile struct {
	UserName      string
	Email         string
	EmailVerified bool
}

// ProfileUpdate is a partial profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	UserName *string
	Email    *string
}

// IdentityStore persists accounts. Implementations must report a missing
// account as [ErrUserNotFound] and a duplicate email as [ErrAccountExists].
//
// SwapPasswordHash writes next only while the stored hash equals current,
// atomically, and reports a mismatch as [ErrStaleWrite].
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	Create(ctx context.Context, identity Identity) (Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SwapPasswordHash(ctx context.Context, id, current, next string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, profile Profile) (Identity, error)
	Delete(ctx context.Context, id string) error
}

// Mailer delivers rendered messages. [mail.Sender] is the SMTP implementation.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID   string
	TokenID  string
	IssuedAt time.Time
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// Emit must not block for long; the dispatcher delivers from one goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a [slog.Logger].
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] logging through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
