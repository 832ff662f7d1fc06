// Package receptionist – keyring.go provides credential storage using the
// operating system's native keyring (Linux: Secret Service/GNOME Keyring,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving secrets:
//  1. config.yaml value (may itself be a ${VAR} expansion)
//  2. OS keyring (encrypted by the OS, requires user session)
//  3. Environment variable (FRONTDESK_API_KEY, TWILIO_AUTH_TOKEN, etc.)
//  4. .env file (loaded by godotenv)
package receptionist

import (
	"fmt"
	"os"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "frontdesk"

	// Keyring entry names for stored secrets.
	keyringAPIKey      = "api_key"
	keyringTwilioSID   = "twilio_account_sid"
	keyringTwilioToken = "twilio_auth_token"
	keyringEmailKey    = "email_api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__frontdesk_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// PromptSecret reads a secret from the terminal without echoing it.
// Falls back to a visible prompt when stdin is not a terminal.
func PromptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	var s string
	if _, err := fmt.Fscanln(os.Stdin, &s); err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return s, nil
}
