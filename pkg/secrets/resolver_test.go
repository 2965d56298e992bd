package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
)

func TestEnvResolver(t *testing.T) {
	t.Run("resolves valid secret", func(t *testing.T) {
		t.Setenv("TEST_DB_SECRET", `{"username":"app","password":"s3cret","host":"db.internal","port":5432}`)

		creds, err := NewEnvResolver().Resolve(context.Background(), "TEST_DB_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "app", creds.Username)
		assert.Equal(t, "s3cret", creds.Password)
		assert.Equal(t, "db.internal", creds.Host)
		assert.Equal(t, 5432, creds.Port)
	})

	t.Run("missing variable", func(t *testing.T) {
		_, err := NewEnvResolver().Resolve(context.Background(), "TEST_DB_SECRET_MISSING")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindSecretUnavailable, apperrors.KindOf(err))
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Setenv("TEST_DB_SECRET_BAD", "not-json")
		_, err := NewEnvResolver().Resolve(context.Background(), "TEST_DB_SECRET_BAD")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindSecretUnavailable, apperrors.KindOf(err))
	})

	t.Run("missing password", func(t *testing.T) {
		t.Setenv("TEST_DB_SECRET_PARTIAL", `{"username":"app"}`)
		_, err := NewEnvResolver().Resolve(context.Background(), "TEST_DB_SECRET_PARTIAL")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindSecretUnavailable, apperrors.KindOf(err))
	})
}

func TestFileResolver(t *testing.T) {
	t.Run("resolves valid secret file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db-creds.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"username":"app","password":"s3cret"}`), 0o600))

		creds, err := NewFileResolver().Resolve(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "app", creds.Username)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileResolver().Resolve(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindSecretUnavailable, apperrors.KindOf(err))
	})
}
