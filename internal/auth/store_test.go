package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailbuddy/internal/config"
)

func sampleToken() Token {
	return Token{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		Expiry:       time.UnixMilli(time.Now().Add(time.Hour).UnixMilli()),
		Email:        "jane@example.com",
		Name:         "Jane Doe",
	}
}

func testFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "session.jwt"), []byte("0123456789abcdef"))
	require.NoError(t, err)
	return s
}

func testSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mailbuddy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStores_RoundTrip(t *testing.T) {
	stores := map[string]Store{
		"file":   testFileStore(t),
		"sqlite": testSQLiteStore(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx)
			assert.ErrorIs(t, err, ErrNotSignedIn)

			want := sampleToken()
			require.NoError(t, s.Save(ctx, want))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want.AccessToken, got.AccessToken)
			assert.Equal(t, want.RefreshToken, got.RefreshToken)
			assert.True(t, want.Expiry.Equal(got.Expiry))
			assert.Equal(t, want.Email, got.Email)
			assert.Equal(t, want.Name, got.Name)
			assert.Empty(t, got.Error)

			want.AccessToken = "ya29.second"
			want.Error = RefreshAccessTokenError
			require.NoError(t, s.Save(ctx, want))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "ya29.second", got.AccessToken)
			assert.Equal(t, RefreshAccessTokenError, got.Error)

			require.NoError(t, s.Delete(ctx))
			require.NoError(t, s.Delete(ctx))
			_, err = s.Load(ctx)
			assert.ErrorIs(t, err, ErrNotSignedIn)
		})
	}
}

func TestFileStore_RejectsTampering(t *testing.T) {
	ctx := context.Background()
	s := testFileStore(t)
	require.NoError(t, s.Save(ctx, sampleToken()))

	other, err := NewFileStore(s.path, []byte("another-secret-key"))
	require.NoError(t, err)
	_, err = other.Load(ctx)
	assert.ErrorContains(t, err, "invalid session file")

	require.NoError(t, os.WriteFile(s.path, []byte("not-a-jwt"), 0o600))
	_, err = s.Load(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotSignedIn)
}

func TestFileStore_SessionExpires(t *testing.T) {
	ctx := context.Background()
	s := testFileStore(t)
	require.NoError(t, s.Save(ctx, sampleToken()))

	s.now = func() time.Time { return time.Now().Add(SessionMaxAge + time.Hour) }
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestNewFileStore_Validation(t *testing.T) {
	_, err := NewFileStore("", []byte("secret"))
	assert.Error(t, err)
	_, err = NewFileStore("/tmp/session.jwt", nil)
	assert.Error(t, err)
}

func TestLoadOrCreateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.jwt.key")

	first, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	fileStore, err := NewStore(config.SessionConfig{Store: config.StoreFile, Path: filepath.Join(dir, "session.jwt")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fileStore)
	assert.FileExists(t, filepath.Join(dir, "session.jwt.key"))

	sqliteStore, err := NewStore(config.SessionConfig{Store: config.StoreSQLite, Path: filepath.Join(dir, "mailbuddy.db")})
	require.NoError(t, err)
	defer sqliteStore.Close()
	assert.IsType(t, &SQLiteStore{}, sqliteStore)

	_, err = NewStore(config.SessionConfig{Store: "redis"})
	assert.Error(t, err)
}
