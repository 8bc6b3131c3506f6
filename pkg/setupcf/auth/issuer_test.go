package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionsIssuer_Obtain(t *testing.T) {
	idToken := createTestToken(jwt.MapClaims{"aud": "uaa", "sub": "repo:vchrisb/setup-cf"})
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer request-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0", r.URL.Query().Get("api-version"))
		assert.Equal(t, "uaa", r.URL.Query().Get("audience"))
		_ = json.NewEncoder(w).Encode(map[string]string{"value": idToken})
	}))
	defer server.Close()

	var masked []string
	issuer := NewActionsIssuer(server.URL+"/token?api-version=2.0", "request-token", nil)
	issuer.Mask = func(s string) { masked = append(masked, s) }

	got, err := issuer.Obtain(context.Background(), "uaa")
	require.NoError(t, err)
	assert.Equal(t, idToken, got)
	assert.Equal(t, []string{idToken}, masked)

	_, err = issuer.Obtain(context.Background(), "uaa")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "issued tokens are never cached")
}

func TestActionsIssuer_Errors(t *testing.T) {
	t.Run("not running with id-token permission", func(t *testing.T) {
		_, err := NewActionsIssuer("", "", nil).Obtain(context.Background(), "uaa")
		var issErr *IssuerError
		require.True(t, errors.As(err, &issErr))
		assert.Equal(t, "uaa", issErr.Audience)
		assert.Contains(t, err.Error(), "id-token: write")
	})

	t.Run("issuer refuses audience", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"audience not allowed"}`))
		}))
		defer server.Close()

		_, err := NewActionsIssuer(server.URL, "request-token", nil).Obtain(context.Background(), "nope")
		var issErr *IssuerError
		require.True(t, errors.As(err, &issErr))
		assert.Contains(t, err.Error(), "403")
		assert.Contains(t, err.Error(), "audience not allowed")
	})

	t.Run("empty value", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"value":""}`))
		}))
		defer server.Close()

		_, err := NewActionsIssuer(server.URL, "request-token", nil).Obtain(context.Background(), "uaa")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no token value")
	})

	t.Run("malformed token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"value":"abc.def"}`))
		}))
		defer server.Close()

		_, err := NewActionsIssuer(server.URL, "request-token", nil).Obtain(context.Background(), "uaa")
		var issErr *IssuerError
		require.True(t, errors.As(err, &issErr))
		assert.Contains(t, err.Error(), "invalid jwt")
	})
}
