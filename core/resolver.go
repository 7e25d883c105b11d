package core

import (
	"errors"
	"log/slog"

	"github.com/jdelaire/botauth/core/auth"
	"github.com/jdelaire/botauth/core/initdata"
	"github.com/jdelaire/botauth/core/policy"
)

// FailureKind tells a transport how to answer a failed authentication.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureBadRequest      FailureKind = "bad_request"
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailureInternal        FailureKind = "internal"
)

// Classify maps an Authenticate error to its FailureKind. Malformed input is a
// bad request; a forged, unknown or stale payload is unauthenticated.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, initdata.ErrMalformed), errors.Is(err, auth.ErrConfig):
		return FailureBadRequest
	case errors.Is(err, auth.ErrAuthentication), errors.Is(err, policy.ErrStale):
		return FailureUnauthenticated
	default:
		return FailureInternal
	}
}

// Resolver authenticates raw init data against a bot registry.
type Resolver struct {
	registry  *auth.Registry
	freshness *policy.Freshness
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFreshness rejects payloads older than the policy allows.
func WithFreshness(f *policy.Freshness) ResolverOption {
	return func(r *Resolver) { r.freshness = f }
}

// NewResolver creates a Resolver.
func NewResolver(registry *auth.Registry, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the resolver checks against.
func (r *Resolver) Registry() *auth.Registry {
	return r.registry
}

// Authenticate parses raw and returns the name of the bot that signed it.
// Errors match initdata.ErrMalformed, auth.ErrAuthentication or policy.ErrStale.
func (r *Resolver) Authenticate(raw string) (string, error) {
	r.logger.Debug("authenticate start", "bytes", len(raw), "bots", r.registry.Len())

	data, err := initdata.Parse(raw)
	if err != nil {
		r.logger.Debug("authenticate rejected", "error", err)
		return "", err
	}

	name, err := auth.Verify(data, r.registry)
	if err != nil {
		r.logger.Debug("authenticate failed", "fields", data.Len(), "error", err)
		return "", err
	}

	if err := r.freshness.Check(data); err != nil {
		r.logger.Debug("authenticate stale", "bot", name, "error", err)
		return "", err
	}

	r.logger.Debug("authenticate matched", "bot", name)
	return name, nil
}
