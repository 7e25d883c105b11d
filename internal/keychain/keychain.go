package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "botauth"

// ErrNotFound means no secret is stored for the account.
var ErrNotFound = errors.New("keychain entry not found")

// Get retrieves a bot token from the system keychain.
func Get(account string) (string, error) {
	secret, err := keyring.Get(serviceName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", account, err)
	}
	return secret, nil
}

// Set stores a bot token in the system keychain.
func Set(account, token string) error {
	if account == "" {
		return fmt.Errorf("keychain account is required")
	}
	if err := keyring.Set(serviceName, account, token); err != nil {
		return fmt.Errorf("keychain set %s: %w", account, err)
	}
	return nil
}

// Delete removes a bot token from the system keychain.
func Delete(account string) error {
	err := keyring.Delete(serviceName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return fmt.Errorf("keychain delete %s: %w", account, err)
	}
	return nil
}
