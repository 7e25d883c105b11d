package policy

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jdelaire/botauth/core/initdata"
)

// AuthDateField carries the unix time the payload was issued.
const AuthDateField = "auth_date"

// ErrStale is matched by every freshness rejection.
var ErrStale = errors.New("stale init data")

// Freshness rejects verified payloads whose auth_date is older than maxAge.
type Freshness struct {
	maxAge time.Duration
	now    func() time.Time
}

// New creates a freshness policy. A zero or negative maxAge disables it.
func New(maxAge time.Duration) *Freshness {
	return &Freshness{
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock overrides the time source (for testing).
func (f *Freshness) WithClock(now func() time.Time) *Freshness {
	if now != nil {
		f.now = now
	}
	return f
}

// Enabled reports whether the policy checks anything.
func (f *Freshness) Enabled() bool {
	return f != nil && f.maxAge > 0
}

// Check returns an error wrapping ErrStale if data is missing a usable
// auth_date or it falls outside the window.
func (f *Freshness) Check(data *initdata.Data) error {
	if !f.Enabled() {
		return nil
	}

	raw, ok := data.Get(AuthDateField)
	if !ok || raw == "" {
		return fmt.Errorf("%w: missing %s", ErrStale, AuthDateField)
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q", ErrStale, AuthDateField, raw)
	}

	age := f.now().Sub(time.Unix(secs, 0))
	if age > f.maxAge {
		return fmt.Errorf("%w: %v old", ErrStale, age.Truncate(time.Second))
	}
	return nil
}
