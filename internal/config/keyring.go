package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "pgkksql"

// Keyring stores profile passwords in the OS secret service.
type Keyring struct {
	service string
}

// NewKeyring returns a vault backed by the OS keyring.
func NewKeyring() *Keyring {
	return &Keyring{service: keyringService}
}

// Set stores the password for a profile.
func (k *Keyring) Set(profile, password string) error {
	if err := keyring.Set(k.service, profile, password); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Get returns the stored password for a profile.
func (k *Keyring) Get(profile string) (string, error) {
	pw, err := keyring.Get(k.service, profile)
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return pw, nil
}

// Delete removes the stored password. A missing entry is not an error.
func (k *Keyring) Delete(profile string) error {
	err := keyring.Delete(k.service, profile)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}
