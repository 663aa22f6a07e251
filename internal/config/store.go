package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joacominatel/pgkksql/internal/logger"
	"gopkg.in/yaml.v3"
)

// PasswordVault keeps profile passwords outside the profile file.
type PasswordVault interface {
	Set(profile, password string) error
	Get(profile string) (string, error)
	Delete(profile string) error
}

// Store persists connection profiles as a YAML list.
type Store struct {
	path  string
	vault PasswordVault
	now   func() time.Time
}

// NewStore creates a profile store backed by the file at path. vault may be
// nil, in which case passwords are written to the file.
func NewStore(path string, vault PasswordVault) *Store {
	return &Store{
		path:  path,
		vault: vault,
		now:   time.Now,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved profiles in file order. A missing or unreadable
// file yields an empty list.
func (s *Store) Load() []Profile {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read profiles", "path", s.path, "error", err)
		}
		return []Profile{}
	}

	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		logger.Warn("Ignoring corrupt profile store", "path", s.path, "error", err)
		return []Profile{}
	}
	if profiles == nil {
		return []Profile{}
	}

	if s.vault != nil {
		for i := range profiles {
			if profiles[i].Password != "" {
				continue
			}
			if pw, err := s.vault.Get(profiles[i].Name); err == nil {
				profiles[i].Password = pw
			}
		}
	}

	return profiles
}

// Save rewrites the whole profile list. The file is replaced atomically.
func (s *Store) Save(profiles []Profile) error {
	out := make([]Profile, len(profiles))
	copy(out, profiles)

	if s.vault != nil {
		for i := range out {
			if out[i].Password == "" {
				continue
			}
			if err := s.vault.Set(out[i].Name, out[i].Password); err != nil {
				logger.Warn("Keyring unavailable, keeping password in profile file",
					"profile", out[i].Name, "error", err)
				continue
			}
			out[i].Password = ""
		}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".connections-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp profile file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profiles: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace profiles: %w", err)
	}

	return nil
}

// MostRecentlyUsed returns the profile with the latest timestamp, or nil
// when the store is empty.
func (s *Store) MostRecentlyUsed() *Profile {
	return MostRecentlyUsed(s.Load())
}

// Touch stamps the named profile with the current time. Unknown names are
// ignored.
func (s *Store) Touch(name string) error {
	profiles := s.Load()
	for i := range profiles {
		if profiles[i].Name == name {
			now := s.now().UTC()
			profiles[i].LastConnectedAt = &now
			return s.Save(profiles)
		}
	}
	return nil
}

// Upsert replaces the profile with the same name or appends a new one.
func (s *Store) Upsert(p Profile) ([]Profile, error) {
	profiles := s.Load()
	replaced := false
	for i := range profiles {
		if profiles[i].Name == p.Name {
			p.LastConnectedAt = profiles[i].LastConnectedAt
			profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		profiles = append(profiles, p)
	}
	return profiles, s.Save(profiles)
}

// Delete removes the named profile and its stored password.
func (s *Store) Delete(name string) ([]Profile, error) {
	profiles := s.Load()
	out := profiles[:0]
	for _, p := range profiles {
		if p.Name != name {
			out = append(out, p)
		}
	}
	if s.vault != nil {
		if err := s.vault.Delete(name); err != nil {
			logger.Debug("No keyring entry removed", "profile", name, "error", err)
		}
	}
	return out, s.Save(out)
}

// MostRecentlyUsed picks the profile with the latest LastConnectedAt.
// Profiles without a timestamp rank below every stamped profile; among
// equals the earliest in the list wins.
func MostRecentlyUsed(profiles []Profile) *Profile {
	if len(profiles) == 0 {
		return nil
	}

	sorted := make([]Profile, len(profiles))
	copy(sorted, profiles)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].LastConnectedAt, sorted[j].LastConnectedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return &sorted[0]
}
