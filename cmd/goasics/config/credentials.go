package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keychainService = "goasics"
	keychainPrefix  = "keychain:"
)

// EncodePassword stores password in the OS keychain under account and returns the marker to
// write to the config file. When no keychain is available the password is base64 encoded
// instead, and the returned error says so.
func EncodePassword(account, password string) (string, error) {
	if err := keyring.Set(keychainService, account, password); err != nil {
		encoded := base64.StdEncoding.EncodeToString([]byte(password))
		return encoded, fmt.Errorf("keychain unavailable, using base64 encoding (less secure): %w", err)
	}
	return keychainPrefix + account, nil
}

// DecodePassword resolves a stored value written by EncodePassword.
func DecodePassword(account, stored string) (string, error) {
	if key, found := strings.CutPrefix(stored, keychainPrefix); found {
		if key != account {
			return "", fmt.Errorf("keychain key mismatch: expected %s, got %s", account, key)
		}
		password, err := keyring.Get(keychainService, key)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve password from keychain: %w", err)
		}
		return password, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode password: %w", err)
	}
	return string(decoded), nil
}

// DeletePassword removes the keychain entry for account. A missing entry is not an error.
func DeletePassword(account string) error {
	if err := keyring.Delete(keychainService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
