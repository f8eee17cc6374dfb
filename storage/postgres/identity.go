package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	webster "github.com/babymilooo/webster-backend"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const identityColumns = `id, email, user_name, password_hash, email_verified, role,
	profile_picture, registered_via_google, created_at`

// FindByID returns the identity with id. A malformed id is a miss.
func (s *Storage) FindByID(ctx context.Context, id string) (webster.Identity, error) {
	const op = "storage.postgres.FindByID"

	uid, err := uuid.Parse(id)
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	identity, err := scanIdentity(s.db.QueryRow(ctx, query, uid))
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return identity, nil
}

func (s *Storage) FindByEmail(ctx context.Context, email string) (webster.Identity, error) {
	const op = "storage.postgres.FindByEmail"

	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	identity, err := scanIdentity(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return identity, nil
}

// Create inserts identity. An empty ID gets a fresh UUID and a zero
// CreatedAt is stamped with the current time.
func (s *Storage) Create(ctx context.Context, identity webster.Identity) (webster.Identity, error) {
	const op = "storage.postgres.Create"

	uid := uuid.New()
	if identity.ID != "" {
		parsed, err := uuid.Parse(identity.ID)
		if err != nil {
			return webster.Identity{}, fmt.Errorf("%s: %w: id must be a uuid", op, webster.ErrInvalidInput)
		}
		uid = parsed
	}
	identity.ID = uid.String()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO identities(id, email, user_name, password_hash, email_verified, role,
			profile_picture, registered_via_google, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := s.db.Exec(ctx, query,
		uid,
		identity.Email,
		identity.UserName,
		identity.PasswordHash,
		identity.EmailVerified,
		identity.Role,
		identity.ProfilePicture,
		identity.RegisteredViaGoogle,
		identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
		}
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return identity, nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "storage.postgres.UpdatePasswordHash"
	return s.execOne(ctx, op, id,
		`UPDATE identities SET password_hash = $2, updated_at = now() WHERE id = $1`, hash)
}

func (s *Storage) SwapPasswordHash(ctx context.Context, id, current, next string) error {
	const op = "storage.postgres.SwapPasswordHash"

	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET password_hash = $3, updated_at = now() WHERE id = $1 AND password_hash = $2`,
		uid, current, next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE id = $1)`, uid).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, webster.ErrStaleWrite)
}

func (s *Storage) MarkEmailVerified(ctx context.Context, id string) error {
	const op = "storage.postgres.MarkEmailVerified"
	return s.execOne(ctx, op, id,
		`UPDATE identities SET email_verified = TRUE, updated_at = now() WHERE id = $1`)
}

func (s *Storage) UpdateProfile(ctx context.Context, id string, p webster.Profile) (webster.Identity, error) {
	const op = "storage.postgres.UpdateProfile"

	uid, err := uuid.Parse(id)
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	query := `
		UPDATE identities
		SET user_name = $2, email = $3, email_verified = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + identityColumns
	identity, err := scanIdentity(s.db.QueryRow(ctx, query, uid, p.UserName, p.Email, p.EmailVerified))
	if err != nil {
		if isUniqueViolation(err) {
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
		}
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return identity, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	const op = "storage.postgres.Delete"
	return s.execOne(ctx, op, id, `DELETE FROM identities WHERE id = $1`)
}

// execOne runs a statement keyed by id and maps "no row touched" to
// ErrUserNotFound.
func (s *Storage) execOne(ctx context.Context, op, id, query string, args ...any) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	tag, err := s.db.Exec(ctx, query, append([]any{uid}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return nil
}

func scanIdentity(row pgx.Row) (webster.Identity, error) {
	var (
		identity webster.Identity
		id       uuid.UUID
	)
	err := row.Scan(
		&id,
		&identity.Email,
		&identity.UserName,
		&identity.PasswordHash,
		&identity.EmailVerified,
		&identity.Role,
		&identity.ProfilePicture,
		&identity.RegisteredViaGoogle,
		&identity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return webster.Identity{}, webster.ErrUserNotFound
		}
		return webster.Identity{}, err
	}
	identity.ID = id.String()
	identity.CreatedAt = identity.CreatedAt.UTC()
	return identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
