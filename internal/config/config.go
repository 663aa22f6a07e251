package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Default values for a new connection profile.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "postgres"
	DefaultUser     = "postgres"
)

// Profile represents a saved database connection profile.
type Profile struct {
	Name            string     `yaml:"name"`
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	Database        string     `yaml:"database"`
	User            string     `yaml:"user"`
	Password        string     `yaml:"password,omitempty"`
	LastConnectedAt *time.Time `yaml:"last_connected_at,omitempty"`
}

// NewProfile returns a profile filled with the connection dialog defaults.
func NewProfile() Profile {
	return Profile{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
		User:     DefaultUser,
	}
}

// WithDatabase returns a copy of the profile targeting another database.
// The timestamp is not carried over.
func (p Profile) WithDatabase(name string) Profile {
	return Profile{
		Name:     p.Name,
		Host:     p.Host,
		Port:     p.Port,
		Database: name,
		User:     p.User,
		Password: p.Password,
	}
}

// DSN builds a PostgreSQL connection URL from the profile.
func (p Profile) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		Host:   p.Host,
		Path:   "/" + p.Database,
	}
	if p.Port > 0 {
		u.Host += ":" + strconv.Itoa(p.Port)
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the profile.
func (p Profile) DisplayString() string {
	s := p.Host
	if p.Port > 0 {
		s += ":" + strconv.Itoa(p.Port)
	}
	s += "/" + p.Database
	if p.User != "" {
		s = p.User + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection URL into a Profile.
func ParseDSN(dsn string) (Profile, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Profile{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	p := Profile{
		Host:     u.Hostname(),
		Database: trimPrefix(u.Path, "/"),
	}

	if u.User != nil {
		p.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			p.Password = pw
		}
	}

	if portStr := u.Port(); portStr != "" {
		p.Port, _ = strconv.Atoi(portStr)
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Database == "" {
		p.Database = DefaultDatabase
	}

	p.Name = fmt.Sprintf("postgres-%s-%d-%s", p.Host, p.Port, p.Database)

	return p, nil
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
