package cf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".cf", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func tokenWithExtra(access, refresh string) *oauth2.Token {
	raw := map[string]interface{}{"access_token": access, "refresh_token": refresh}
	return (&oauth2.Token{AccessToken: access, RefreshToken: refresh}).WithExtra(raw)
}

func TestSessionFile_Endpoint(t *testing.T) {
	path := writeConfig(t, `{"ConfigVersion":3,"UaaEndpoint":"https://uaa.sys.example.com","AccessToken":""}`)
	endpoint, err := NewSessionFile(path).Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://uaa.sys.example.com", endpoint)
}

func TestSessionFile_EndpointRequiresAPITarget(t *testing.T) {
	path := writeConfig(t, `{"ConfigVersion":3,"UaaEndpoint":""}`)
	_, err := NewSessionFile(path).Endpoint()
	require.ErrorIs(t, err, ErrNoEndpoint)

	var sessErr *SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, path, sessErr.Path)
}

func TestSessionFile_UpdateReplacesRefreshToken(t *testing.T) {
	original := `{
  "ConfigVersion": 3,
  "Target": "https://api.sys.example.com",
  "UaaEndpoint": "https://uaa.sys.example.com/&x",
  "AccessToken": "old",
  "RefreshToken": "r0",
  "SSLDisabled": false,
  "OrganizationFields": {"GUID": "", "Name": ""}
}
`
	path := writeConfig(t, original)

	require.NoError(t, NewSessionFile(path).Update(tokenWithExtra("new", "r1")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "ConfigVersion": 3,
  "Target": "https://api.sys.example.com",
  "UaaEndpoint": "https://uaa.sys.example.com/&x",
  "AccessToken": "bearer new",
  "RefreshToken": "r1",
  "SSLDisabled": false,
  "OrganizationFields": {"GUID": "", "Name": ""}
}`, string(content))

	// only the two token values change; order, spacing and escaping stay as written
	want := strings.NewReplacer(`"AccessToken": "old"`, `"AccessToken": "bearer new"`, `"RefreshToken": "r0"`, `"RefreshToken": "r1"`).Replace(original)
	assert.Equal(t, want, string(content))
	assert.Less(t, strings.Index(string(content), "ConfigVersion"), strings.Index(string(content), "Target"))
	assert.Less(t, strings.Index(string(content), "AccessToken"), strings.Index(string(content), "OrganizationFields"))
}

func TestSessionFile_UpdateDoesNotAddRefreshToken(t *testing.T) {
	path := writeConfig(t, `{"UaaEndpoint":"https://uaa.example.com","AccessToken":"old"}`)

	require.NoError(t, NewSessionFile(path).Update(tokenWithExtra("new", "r1")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"UaaEndpoint":"https://uaa.example.com","AccessToken":"bearer new"}`, string(content))
}

func TestSessionFile_UpdateKeepsRefreshTokenWhenResponseHasNone(t *testing.T) {
	path := writeConfig(t, `{"AccessToken":"old","RefreshToken":"r0"}`)

	token := (&oauth2.Token{AccessToken: "new"}).WithExtra(map[string]interface{}{"access_token": "new"})
	require.NoError(t, NewSessionFile(path).Update(token))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"AccessToken":"bearer new","RefreshToken":"r0"}`, string(content))
}

func TestSessionFile_UpdateAddsMissingAccessToken(t *testing.T) {
	path := writeConfig(t, `{"UaaEndpoint":"https://uaa.example.com"}`)
	require.NoError(t, NewSessionFile(path).Update(&oauth2.Token{AccessToken: "new"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"UaaEndpoint":"https://uaa.example.com","AccessToken":"bearer new"}`, string(content))
}

func TestSessionFile_UpdatePreservesMode(t *testing.T) {
	path := writeConfig(t, `{"AccessToken":"old"}`)
	require.NoError(t, os.Chmod(path, 0o640))

	require.NoError(t, NewSessionFile(path).Update(&oauth2.Token{AccessToken: "new"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSessionFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := NewSessionFile(filepath.Join(t.TempDir(), "config.json")).Update(&oauth2.Token{AccessToken: "x"})
		var sessErr *SessionError
		require.True(t, errors.As(err, &sessErr))
		assert.Equal(t, "read", sessErr.Op)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeConfig(t, `{"AccessToken":`)
		err := NewSessionFile(path).Update(&oauth2.Token{AccessToken: "x"})
		var sessErr *SessionError
		require.True(t, errors.As(err, &sessErr))
		assert.Equal(t, "parse", sessErr.Op)
	})

	t.Run("endpoint not a string", func(t *testing.T) {
		path := writeConfig(t, `{"UaaEndpoint": 42}`)
		_, err := NewSessionFile(path).Endpoint()
		var sessErr *SessionError
		require.True(t, errors.As(err, &sessErr))
		assert.Equal(t, "parse", sessErr.Op)
	})

	t.Run("not an object", func(t *testing.T) {
		path := writeConfig(t, `["AccessToken"]`)
		_, err := NewSessionFile(path).Endpoint()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a JSON object")
	})

	t.Run("nil token", func(t *testing.T) {
		path := writeConfig(t, `{}`)
		require.Error(t, NewSessionFile(path).Update(nil))
	})
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/work", ".cf", "config.json"), ConfigPath("/work"))

	t.Setenv("CF_HOME", "/cfhome")
	assert.Equal(t, filepath.Join("/cfhome", ".cf", "config.json"), ConfigPath(""))

	home := t.TempDir()
	t.Setenv("CF_HOME", "")
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".cf", "config.json"), ConfigPath(""))
}
