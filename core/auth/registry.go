package auth

import (
	"crypto/hmac"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
)

// Credential is a registered bot. The token and its derived secret never
// leave this package.
type Credential struct {
	Name   string
	token  string
	secret []byte
}

// Registry holds bot credentials keyed by name, iterated in registration order.
type Registry struct {
	mu    sync.RWMutex
	bots  map[string]*Credential
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bots: make(map[string]*Credential),
	}
}

// Register adds a bot. The first registration of a name wins: registering it
// again with the same token is a no-op, with a different token it is a
// ConfigError and the original credential is kept.
func (r *Registry) Register(name, token string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ConfigError{Err: fmt.Errorf("%w: name is required", ErrConfig)}
	}
	if strings.TrimSpace(token) == "" {
		return &ConfigError{Name: name, Err: fmt.Errorf("%w: token is required", ErrConfig)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.bots[name]; exists {
		if subtle.ConstantTimeCompare([]byte(existing.token), []byte(token)) == 1 {
			return nil
		}
		return &ConfigError{Name: name, Err: ErrTokenConflict}
	}

	r.bots[name] = &Credential{
		Name:   name,
		token:  token,
		secret: DeriveSecret(token),
	}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the credential registered under name.
func (r *Registry) Lookup(name string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.bots[name]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %q", ErrBotNotFound, name)
	}
	return *c, nil
}

// All returns a snapshot of every credential in registration order.
func (r *Registry) All() []Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Credential, len(r.order))
	for i, name := range r.order {
		out[i] = *r.bots[name]
	}
	return out
}

// Names returns registered bot names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered bots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// matches reports whether the credential signs checkString to hash.
func (c Credential) matches(checkString, hash string) bool {
	expected := signWithSecret(c.secret, checkString)
	return hmac.Equal([]byte(expected), []byte(hash))
}
