package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	webster "github.com/babymilooo/webster-backend"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Integration tests against a real MongoDB started by testcontainers-go.
//
//	GO_TEST_INTEGRATION=1 go test ./storage/mongo -v -count=1

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017/webster":                  "webster",
		"mongodb://u:p@localhost:27017/app?authSource=admin": "app",
		"mongodb://localhost:27017":                          defaultDBName,
		"mongodb://localhost:27017/":                         defaultDBName,
	}
	for uri, want := range cases {
		require.Equal(t, want, databaseFromURI(uri), uri)
	}
}

func TestNewRejectsEmptyURI(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestDocumentIdentityFallsBackToObjectIDTime(t *testing.T) {
	oid := primitive.NewObjectIDFromTimestamp(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	got := userDocument{ID: oid, Email: "a@example.com", Role: "user"}.identity()

	require.Equal(t, oid.Hex(), got.ID)
	require.True(t, got.CreatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func startMongo(t *testing.T) *Mongo {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	uri := fmt.Sprintf("mongodb://%s:%s/webster_test", host, port.Port())

	var m *Mongo
	require.Eventually(t, func() bool {
		m, err = New(ctx, uri)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestIntegration_CreateAndFind(t *testing.T) {
	m := startMongo(t)
	ctx := context.Background()

	created, err := m.Create(ctx, webster.Identity{
		Email:        "alice@example.com",
		UserName:     "alice",
		PasswordHash: "hash",
		Role:         "user",
	})
	require.NoError(t, err)
	_, err = primitive.ObjectIDFromHex(created.ID)
	require.NoError(t, err)

	byID, err := m.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", byID.Email)
	require.Equal(t, "hash", byID.PasswordHash)
	require.WithinDuration(t, created.CreatedAt, byID.CreatedAt, time.Second)

	byEmail, err := m.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	_, err = m.Create(ctx, webster.Identity{Email: "alice@example.com", Role: "user"})
	require.ErrorIs(t, err, webster.ErrAccountExists)
}

func TestIntegration_Misses(t *testing.T) {
	m := startMongo(t)
	ctx := context.Background()
	ghost := primitive.NewObjectID().Hex()

	_, err := m.FindByID(ctx, "not-an-object-id")
	require.ErrorIs(t, err, webster.ErrUserNotFound)
	_, err = m.FindByID(ctx, ghost)
	require.ErrorIs(t, err, webster.ErrUserNotFound)
	_, err = m.FindByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, webster.ErrUserNotFound)
	require.ErrorIs(t, m.Delete(ctx, ghost), webster.ErrUserNotFound)
	require.ErrorIs(t, m.UpdatePasswordHash(ctx, ghost, "h"), webster.ErrUserNotFound)
	require.ErrorIs(t, m.SwapPasswordHash(ctx, ghost, "h", "h2"), webster.ErrUserNotFound)
	_, err = m.UpdateProfile(ctx, ghost, webster.Profile{UserName: "x", Email: "x@example.com"})
	require.ErrorIs(t, err, webster.ErrUserNotFound)
}

func TestIntegration_Updates(t *testing.T) {
	m := startMongo(t)
	ctx := context.Background()

	a, err := m.Create(ctx, webster.Identity{Email: "a@example.com", UserName: "a", Role: "user"})
	require.NoError(t, err)
	_, err = m.Create(ctx, webster.Identity{Email: "b@example.com", UserName: "b", Role: "user"})
	require.NoError(t, err)

	require.NoError(t, m.UpdatePasswordHash(ctx, a.ID, "new-hash"))
	require.ErrorIs(t, m.SwapPasswordHash(ctx, a.ID, "stale-hash", "lost"), webster.ErrStaleWrite)
	require.NoError(t, m.MarkEmailVerified(ctx, a.ID))
	// Setting the flag again still matches the document.
	require.NoError(t, m.MarkEmailVerified(ctx, a.ID))

	got, err := m.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.True(t, got.EmailVerified)

	require.NoError(t, m.SwapPasswordHash(ctx, a.ID, "new-hash", "swapped-hash"))
	require.ErrorIs(t, m.SwapPasswordHash(ctx, a.ID, "new-hash", "again"), webster.ErrStaleWrite)
	got, err = m.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "swapped-hash", got.PasswordHash)

	_, err = m.UpdateProfile(ctx, a.ID, webster.Profile{UserName: "a", Email: "b@example.com"})
	require.ErrorIs(t, err, webster.ErrAccountExists)

	updated, err := m.UpdateProfile(ctx, a.ID, webster.Profile{UserName: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.UserName)
	require.Equal(t, "alice@example.com", updated.Email)
	require.False(t, updated.EmailVerified)

	require.NoError(t, m.Delete(ctx, a.ID))
	_, err = m.FindByID(ctx, a.ID)
	require.ErrorIs(t, err, webster.ErrUserNotFound)
}
