package webster

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/babymilooo/webster-backend/mail"
	"github.com/babymilooo/webster-backend/password"
	"github.com/redis/go-redis/v9"
)

type mockIdentityStore struct {
	mu      sync.Mutex
	byID    map[string]Identity
	nextID  int
	findErr error

	updatePasswordCalls int
}

func newMockIdentityStore() *mockIdentityStore {
	return &mockIdentityStore{byID: map[string]Identity{}}
}

func (m *mockIdentityStore) FindByID(_ context.Context, id string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return Identity{}, m.findErr
	}
	identity, ok := m.byID[id]
	if !ok {
		return Identity{}, ErrUserNotFound
	}
	return identity, nil
}

func (m *mockIdentityStore) FindByEmail(_ context.Context, email string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return Identity{}, m.findErr
	}
	for _, identity := range m.byID {
		if identity.Email == email {
			return identity, nil
		}
	}
	return Identity{}, ErrUserNotFound
}

func (m *mockIdentityStore) Create(_ context.Context, identity Identity) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == identity.Email {
			return Identity{}, ErrAccountExists
		}
	}
	m.nextID++
	identity.ID = "u" + strconv.Itoa(m.nextID)
	m.byID[identity.ID] = identity
	return identity, nil
}

func (m *mockIdentityStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++
	identity, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	identity.PasswordHash = hash
	m.byID[id] = identity
	return nil
}

func (m *mockIdentityStore) SwapPasswordHash(_ context.Context, id, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++
	identity, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if identity.PasswordHash != current {
		return ErrStaleWrite
	}
	identity.PasswordHash = next
	m.byID[id] = identity
	return nil
}

func (m *mockIdentityStore) MarkEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	identity.EmailVerified = true
	m.byID[id] = identity
	return nil
}

func (m *mockIdentityStore) UpdateProfile(_ context.Context, id string, p Profile) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return Identity{}, ErrUserNotFound
	}
	for otherID, other := range m.byID {
		if otherID != id && other.Email == p.Email {
			return Identity{}, ErrAccountExists
		}
	}
	identity.UserName = p.UserName
	identity.Email = p.Email
	identity.EmailVerified = p.EmailVerified
	m.byID[id] = identity
	return identity, nil
}

func (m *mockIdentityStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockIdentityStore) get(id string) Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// put stores identity under identity.ID.
func (m *mockIdentityStore) put(identity Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[identity.ID] = identity
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingMailer) last(t *testing.T) mail.Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("expected a sent message")
	}
	return r.sent[len(r.sent)-1]
}

var linkTokenRE = regexp.MustCompile(`/auth/(?:verify-email|password-reset)/([A-Za-z0-9_\-.]+)`)

func tokenFromMessage(t *testing.T, msg mail.Message) string {
	t.Helper()
	m := linkTokenRE.FindStringSubmatch(msg.HTML)
	if len(m) != 2 {
		t.Fatalf("no token link in message %q", msg.HTML)
	}
	return m[1]
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func newTestHasher(t *testing.T) password.Migrating {
	t.Helper()

	primary, err := password.NewArgon2(password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	legacy, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	return password.Migrating{Primary: primary, Legacy: []password.Algorithm{legacy}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrontendURL = "https://app.example.com"
	cfg.Tokens.AccessSecret = []byte("access-secret")
	cfg.Tokens.RefreshSecret = []byte("refresh-secret")
	cfg.Tokens.VerificationSecret = []byte("verification-secret")
	cfg.Tokens.PasswordResetSecret = []byte("reset-secret")
	cfg.Tokens.TicketSecret = []byte("ticket-secret")
	cfg.EmailVerification.LinkBaseURL = "https://api.example.com"
	cfg.PasswordReset.LinkBaseURL = "https://api.example.com"
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *mockIdentityStore
	mailer *recordingMailer
	hasher password.Migrating
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

type envOption func(*Builder)

func withRedis(rdb *redis.Client) envOption {
	return func(b *Builder) { b.WithRedis(rdb) }
}

func withConfig(mutate func(*Config)) envOption {
	return func(b *Builder) {
		cfg := b.config
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withClock(now func() time.Time) envOption {
	return func(b *Builder) { b.WithClock(now) }
}

func withSink(sink AuditSink) envOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		store:  newMockIdentityStore(),
		mailer: &recordingMailer{},
		hasher: newTestHasher(t),
	}
	b := New().
		WithConfig(testConfig()).
		WithIdentityStore(env.store).
		WithMailer(env.mailer).
		WithPasswordHasher(env.hasher)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// seedUser stores an account with the given password and returns it.
func (env *testEnv) seedUser(t *testing.T, id, email, pw string) Identity {
	t.Helper()

	hash, err := env.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	identity := Identity{
		ID:           id,
		Email:        email,
		UserName:     strings.Split(email, "@")[0],
		PasswordHash: hash,
		Role:         defaultRole,
	}
	env.store.put(identity)
	return identity
}

func requireErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
