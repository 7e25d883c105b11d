package core

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jdelaire/botauth/core/auth"
	"github.com/jdelaire/botauth/core/botconfig"
)

// RegisterBots resolves each bot's token and registers it. Every bot is
// attempted; failures are joined into the returned error. added lists the
// names that were not registered before this call.
func RegisterBots(reg *auth.Registry, bots []botconfig.BotConfig) (added []string, err error) {
	var errs []error
	for _, b := range bots {
		_, lookupErr := reg.Lookup(b.Name)
		known := lookupErr == nil

		token, tokErr := b.ResolveToken()
		if tokErr != nil {
			errs = append(errs, tokErr)
			continue
		}
		if regErr := reg.Register(b.Name, token); regErr != nil {
			errs = append(errs, regErr)
			continue
		}
		if !known {
			added = append(added, b.Name)
		}
	}
	return added, errors.Join(errs...)
}

// Reloader re-reads the bot config and registers bots that appeared since
// the last load. Registered bots are never replaced or removed.
type Reloader struct {
	registry *auth.Registry
	logger   *slog.Logger

	mu sync.Mutex
}

// NewReloader creates a reloader for the given registry.
func NewReloader(registry *auth.Registry, logger *slog.Logger) *Reloader {
	return &Reloader{
		registry: registry,
		logger:   logger,
	}
}

// ReloadBots loads path and registers any new bots. Errors are logged; a
// conflicting token for an existing bot leaves the original in place.
func (r *Reloader) ReloadBots(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := botconfig.Load(path)
	if err != nil {
		r.logger.Error("reload bots failed", "path", path, "error", err)
		return
	}

	added, err := RegisterBots(r.registry, cfg.Bots)
	if err != nil {
		r.logger.Warn("some bots were not reloaded", "path", path, "error", err)
	}
	for _, name := range added {
		r.logger.Info("registered bot", "name", name)
	}
	r.logger.Info("bots reloaded", "added", len(added), "total", r.registry.Len())
}

