// Package hydrate turns stored subsection payloads back into working state.
//
// Stored payloads are not versioned, so decoding is tolerant: keys the
// current section no longer declares are dropped and reported, missing keys
// are left for the caller to default, and over-long collections are cut to
// the current maximum. Hooks let callers migrate payloads before decoding.
package hydrate

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Context identifies the payload being decoded.
type Context struct {
	Section string
	Key     string
}

// PreHook migrates a stored payload before decoding. Returning nil keeps
// the payload unchanged.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook checks or reports on the decoded value.
type PostHook[T any] func(Context, *T) error

// DecodeFunc maps a migrated payload onto T.
type DecodeFunc[T any] func(Context, map[string]any) (T, error)

type DecoderOption[T any] func(*Decoder[T])

// Decoder converts stored payload maps into T.
type Decoder[T any] struct {
	decode     DecodeFunc[T]
	migrations []PreHook
	checks     []PostHook[T]
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.migrations = append(d.migrations, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.checks = append(d.checks, hook)
		}
	}
}

func NewDecoder[T any](decode DecodeFunc[T], opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{decode: decode}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode migrates, decodes and checks payload. The input map is never
// mutated.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var out T
	if payload == nil {
		return out, fmt.Errorf("hydrate: payload is nil for section %q", ctx.Section)
	}
	current, err := d.migrate(ctx, payload)
	if err != nil {
		return out, err
	}
	if out, err = d.decode(ctx, current); err != nil {
		return out, fmt.Errorf("hydrate: decode section %q: %w", ctx.Section, err)
	}
	for _, check := range d.checks {
		if err := check(ctx, &out); err != nil {
			return out, fmt.Errorf("hydrate: post-hook for section %q failed: %w", ctx.Section, err)
		}
	}
	return out, nil
}

func (d *Decoder[T]) migrate(ctx Context, payload map[string]any) (map[string]any, error) {
	current, err := clonePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("hydrate: clone payload for section %q: %w", ctx.Section, err)
	}
	for _, migration := range d.migrations {
		next, err := migration(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: pre-hook for section %q failed: %w", ctx.Section, err)
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// clonePayload round-trips through JSON. Numbers stay json.Number until
// normalize runs so integers survive the trip.
func clonePayload(payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
