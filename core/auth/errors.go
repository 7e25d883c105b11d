package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is matched by every ConfigError.
	ErrConfig = errors.New("invalid bot configuration")

	// ErrTokenConflict means a bot name was re-registered with a different token.
	ErrTokenConflict = errors.New("bot already registered with a different token")

	// ErrBotNotFound is returned by Lookup for unknown names.
	ErrBotNotFound = errors.New("bot not found")

	// ErrAuthentication means the payload matched no registered bot.
	ErrAuthentication = errors.New("init data not signed by any registered bot")
)

// ConfigError reports invalid registration input.
type ConfigError struct {
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("register bot: %v", e.Err)
	}
	return fmt.Sprintf("register bot %q: %v", e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
