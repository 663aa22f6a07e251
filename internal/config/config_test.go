package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDSN_EscapesCredentials(t *testing.T) {
	p := Profile{Host: "db", Port: 5433, Database: "app", User: "me", Password: "p@ss word"}

	dsn := p.DSN()
	assert.Equal(t, "postgresql://me:p%40ss%20word@db:5433/app", dsn)

	back, err := ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "p@ss word", back.Password)
	assert.Equal(t, 5433, back.Port)
	assert.Equal(t, "app", back.Database)
}

func TestParseDSN_Defaults(t *testing.T) {
	p, err := ParseDSN("postgres://alice@")
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, p.Host)
	assert.Equal(t, DefaultPort, p.Port)
	assert.Equal(t, DefaultDatabase, p.Database)
	assert.Equal(t, "alice", p.User)
	assert.Equal(t, "postgres-localhost-5432-postgres", p.Name)

	_, err = ParseDSN("mysql://root@localhost/db")
	assert.Error(t, err)
}

func TestProfileWithDatabase(t *testing.T) {
	p := Profile{Name: "n", Host: "h", Port: 1, Database: "a", User: "u", Password: "pw"}
	q := p.WithDatabase("b")

	assert.Equal(t, "b", q.Database)
	assert.Equal(t, "a", p.Database)
	assert.Equal(t, p.Host, q.Host)
	assert.Equal(t, p.Password, q.Password)
}

func TestLoad_MissingExplicitFileUsesDefaults(t *testing.T) {
	prefs, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRowLimit, prefs.Query.RowLimit)
	assert.True(t, prefs.Query.LimitEnabled)
	assert.Equal(t, "info", prefs.Log.Level)
	assert.False(t, prefs.Profiles.UseKeyring)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
query:
  row_limit: 250
profiles:
  path: /tmp/profiles.yaml
  use_keyring: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	prefs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, prefs.Query.RowLimit)
	assert.Equal(t, "/tmp/profiles.yaml", prefs.Profiles.Path)
	assert.True(t, prefs.Profiles.UseKeyring)
	assert.Equal(t, "debug", prefs.Log.Level)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
