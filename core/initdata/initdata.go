package initdata

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// HashField is the name of the field carrying the authentication tag.
const HashField = "hash"

// ErrMalformed is matched by every ParseError.
var ErrMalformed = errors.New("malformed init data")

// ParseError reports a payload that cannot be decomposed into key/value pairs.
type ParseError struct {
	Segment string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("parse init data: %v", e.Err)
	}
	return fmt.Sprintf("parse init data: segment %q: %v", e.Segment, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }

// Data is an ordered mapping of init data fields, including the hash.
type Data struct {
	keys   []string
	values map[string]string
}

// New creates an empty Data.
func New() *Data {
	return &Data{values: make(map[string]string)}
}

// Parse decodes a raw init data string. The whole string is percent-decoded
// once, then split on "&" and each segment on its first "=".
// Empty segments are skipped; a segment without "=" is rejected.
func Parse(raw string) (*Data, error) {
	d := New()
	if raw == "" {
		return d, nil
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	for _, segment := range strings.Split(decoded, "&") {
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return nil, &ParseError{Segment: segment, Err: fmt.Errorf("%w: missing '='", ErrMalformed)}
		}
		d.Set(key, value)
	}
	return d, nil
}

// Set stores a field. A repeated key keeps its first position and takes the new value.
func (d *Data) Set(key, value string) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns a field value and whether it was present.
func (d *Data) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Hash returns the authentication tag, or "" when absent.
func (d *Data) Hash() string {
	return d.values[HashField]
}

// Keys returns field names in the order they were first seen.
func (d *Data) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of distinct fields.
func (d *Data) Len() int {
	return len(d.keys)
}

// CheckString renders every field except the hash as "key=value", sorted by
// key and joined with "\n". This is the exact message that gets signed.
func (d *Data) CheckString() string {
	keys := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if k != HashField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d.values[k])
	}
	return b.String()
}

// Encode renders fields plus hash as a raw init data string. Keys are sorted
// so the output is stable. Parse decodes the whole string before splitting,
// so a value containing "&" does not survive the round trip.
func Encode(fields map[string]string, hash string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != HashField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, url.PathEscape(k)+"="+url.PathEscape(fields[k]))
	}
	if hash != "" {
		parts = append(parts, HashField+"="+hash)
	}
	return strings.Join(parts, "&")
}
