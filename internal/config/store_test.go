package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "connections.yaml"), nil)
}

func stamp(t time.Time) *time.Time { return &t }

func TestStoreLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)

	profiles := s.Load()
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
	assert.Nil(t, s.MostRecentlyUsed())
}

func TestStoreLoad_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{{ not: [yaml"), 0o600))

	assert.Empty(t, s.Load())
}

func TestStoreLoad_LegacyRecordWithoutTimestamp(t *testing.T) {
	s := newTestStore(t)
	legacy := `
- name: local
  host: localhost
  port: 5432
  database: app
  user: app
  password: secret
- name: stamped
  host: db.internal
  port: 6432
  database: app
  user: app
  last_connected_at: 2024-03-01T10:00:00Z
`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o600))

	profiles := s.Load()
	require.Len(t, profiles, 2)
	assert.Equal(t, "local", profiles[0].Name)
	assert.Equal(t, "secret", profiles[0].Password)
	assert.Nil(t, profiles[0].LastConnectedAt)
	require.NotNil(t, profiles[1].LastConnectedAt)
	assert.Equal(t, 2024, profiles[1].LastConnectedAt.Year())
}

func TestStoreSave_ReplacesWholeFile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save([]Profile{{Name: "a"}, {Name: "b"}, {Name: "c"}}))
	require.NoError(t, s.Save([]Profile{{Name: "b"}}))

	profiles := s.Load()
	require.Len(t, profiles, 1)
	assert.Equal(t, "b", profiles[0].Name)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStoreTouch(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Save([]Profile{{Name: "prod"}, {Name: "dev"}}))
	require.NoError(t, s.Touch("dev"))

	profiles := s.Load()
	assert.Nil(t, profiles[0].LastConnectedAt)
	require.NotNil(t, profiles[1].LastConnectedAt)
	assert.True(t, fixed.Equal(*profiles[1].LastConnectedAt))

	mru := s.MostRecentlyUsed()
	require.NotNil(t, mru)
	assert.Equal(t, "dev", mru.Name)
}

func TestStoreTouch_UnknownNameIsNoop(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Touch("ghost"))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "touching an unknown profile must not create the store")
}

func TestMostRecentlyUsed(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	profiles := []Profile{
		{Name: "never"},
		{Name: "old", LastConnectedAt: stamp(older)},
		{Name: "new", LastConnectedAt: stamp(newer)},
	}

	mru := MostRecentlyUsed(profiles)
	require.NotNil(t, mru)
	assert.Equal(t, "new", mru.Name)

	mru = MostRecentlyUsed(profiles[:2])
	require.NotNil(t, mru)
	assert.Equal(t, "old", mru.Name, "an unstamped profile is never preferred over a stamped one")
}

func TestMostRecentlyUsed_NoTimestamps(t *testing.T) {
	mru := MostRecentlyUsed([]Profile{{Name: "first"}, {Name: "second"}})
	require.NotNil(t, mru)
	assert.Equal(t, "first", mru.Name)
}

func TestStoreUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	when := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save([]Profile{{Name: "a", Host: "old", LastConnectedAt: stamp(when)}}))

	profiles, err := s.Upsert(Profile{Name: "a", Host: "new"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "new", profiles[0].Host)
	require.NotNil(t, profiles[0].LastConnectedAt, "upsert keeps the usage timestamp")

	profiles, err = s.Upsert(Profile{Name: "b"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	profiles, err = s.Delete("a")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "b", s.Load()[0].Name)
}

func TestStore_KeyringKeepsPasswordOutOfFile(t *testing.T) {
	keyring.MockInit()
	s := NewStore(filepath.Join(t.TempDir(), "connections.yaml"), NewKeyring())

	require.NoError(t, s.Save([]Profile{{Name: "vaulted", Password: "hunter2"}}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	profiles := s.Load()
	require.Len(t, profiles, 1)
	assert.Equal(t, "hunter2", profiles[0].Password)

	_, err = s.Delete("vaulted")
	require.NoError(t, err)
	_, err = NewKeyring().Get("vaulted")
	assert.Error(t, err)
}
