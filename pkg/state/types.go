package state

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-intake/layering"
)

// RecordKey is the fixed key identifying the single application record.
const RecordKey = "application"

var (
	// ErrPersistence marks every failure raised by the storage medium.
	ErrPersistence = errors.New("state: persistence failure")
	// ErrUnknownSubsection is returned when a store restricted to a fixed set
	// of subsection names receives any other name.
	ErrUnknownSubsection = errors.New("state: unknown subsection")
)

// Record maps subsection names to their saved payloads.
type Record map[string]any

// Subsection returns the payload saved under name.
func (r Record) Subsection(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	value, ok := r[name]
	return value, ok
}

// Names returns the saved subsection names sorted alphabetically.
func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep copies the record so callers cannot alias stored data.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(layering.CloneMap(map[string]any(r)))
}

// Store persists the single application record.
type Store interface {
	Replace(ctx context.Context, record Record) error
	Read(ctx context.Context) (record Record, ok bool, err error)
	Delete(ctx context.Context) error
	UpdateSubsection(ctx context.Context, name string, data any) error
}

// PersistenceError wraps a storage medium failure with the operation that
// raised it.
type PersistenceError struct {
	Op         string
	Subsection string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Subsection != "" {
		return fmt.Sprintf("state: %s %q: %v", e.Op, e.Subsection, e.Err)
	}
	return fmt.Sprintf("state: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports true for ErrPersistence so callers can branch on the category
// without caring about the backend.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func wrapPersistence(op, subsection string, err error) error {
	if err == nil {
		return nil
	}
	var existing *PersistenceError
	if errors.As(err, &existing) {
		return err
	}
	return &PersistenceError{Op: op, Subsection: subsection, Err: err}
}

// KeyOf returns the record key used by store, or RecordKey when the store
// does not report one.
func KeyOf(store Store) string {
	if keyed, ok := store.(interface{ Key() string }); ok {
		if key := keyed.Key(); key != "" {
			return key
		}
	}
	return RecordKey
}

// Option configures a store.
type Option func(*config)

type config struct {
	key         string
	subsections map[string]struct{}
}

// WithKey overrides the fixed record key. All operations still use a single
// key; this only changes its spelling (e.g. to namespace a shared Redis).
func WithKey(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.key = key
		}
	}
}

// WithSubsections restricts UpdateSubsection to the given names.
func WithSubsections(names ...string) Option {
	return func(cfg *config) {
		if len(names) == 0 {
			return
		}
		cfg.subsections = make(map[string]struct{}, len(names))
		for _, name := range names {
			cfg.subsections[name] = struct{}{}
		}
	}
}

func applyOptions(opts []Option) config {
	cfg := config{key: RecordKey}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) checkSubsection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrUnknownSubsection)
	}
	if cfg.subsections == nil {
		return nil
	}
	if _, ok := cfg.subsections[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubsection, name)
	}
	return nil
}

func (cfg config) checkRecord(record Record) error {
	for name := range record {
		if err := cfg.checkSubsection(name); err != nil {
			return err
		}
	}
	return nil
}
