package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVaultConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "root",
		Mount:     "secret",
		Path:      "teleconsult",
		KVVersion: 2,
	}
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_IncompleteConfig(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/teleconsult", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		w.Write([]byte(`{"data":{"data":{"TC_VAULT_JWT":"from-vault","TC_VAULT_WORKERS":4,"TC_VAULT_KEPT":"vault"}}}`))
	}))
	defer server.Close()

	t.Setenv("TC_VAULT_JWT", "")
	t.Setenv("TC_VAULT_WORKERS", "")
	t.Setenv("TC_VAULT_KEPT", "local")

	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, "from-vault", getenv(t, "TC_VAULT_JWT"))
	assert.Equal(t, "4", getenv(t, "TC_VAULT_WORKERS"))
	assert.Equal(t, "local", getenv(t, "TC_VAULT_KEPT"))
}

func TestApplyVaultSecrets_KVv1WithOverwrite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kv/teleconsult", r.URL.Path)
		w.Write([]byte(`{"data":{"TC_VAULT_KEY":"fresh"}}`))
	}))
	defer server.Close()

	t.Setenv("TC_VAULT_KEY", "stale")
	cfg := testVaultConfig(server.URL)
	cfg.KVVersion = 1
	cfg.Mount = "kv"
	cfg.Overwrite = true

	result, err := ApplyVaultSecrets(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, "fresh", getenv(t, "TC_VAULT_KEY"))
}

func TestApplyVaultSecrets_ForbiddenIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestApplyVaultSecrets_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"data":{"TC_VAULT_RETRY":"ok"}}}`))
	}))
	defer server.Close()

	t.Setenv("TC_VAULT_RETRY", "")
	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDecodeVaultSecret_MissingData(t *testing.T) {
	_, err := decodeVaultSecret([]byte(`{"data":{"metadata":{}}}`), 2)
	assert.Error(t, err)

	_, err = decodeVaultSecret([]byte(`{}`), 1)
	assert.Error(t, err)
}

func getenv(t *testing.T, key string) string {
	t.Helper()
	return os.Getenv(key)
}
