package intake

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSection    = errors.New("intake: unknown section")
	ErrUnknownField      = errors.New("intake: unknown field")
	ErrUnknownCollection = errors.New("intake: unknown collection")
	ErrUnknownEntry      = errors.New("intake: unknown collection entry")
	ErrRuleCycle         = errors.New("intake: conditional rules form a cycle")
	ErrNoActiveSection   = errors.New("intake: no active section")
	// ErrNavigationBlocked is returned under NavigationRequireValid when the
	// active section does not validate and the move is forward.
	ErrNavigationBlocked = errors.New("intake: navigation blocked by invalid section")
	ErrInvalidDefinition = errors.New("intake: invalid section definition")
	// ErrInvalidPayload is returned when a stored or submitted payload does
	// not have the shape its section saves.
	ErrInvalidPayload = errors.New("intake: invalid section payload")
)

// Issue codes reported on field and refinement findings.
const (
	CodeRequired           = "required"
	CodeInvalidType        = "invalid_type"
	CodePattern            = "pattern"
	CodeTooSmall           = "too_small"
	CodeTooBig             = "too_big"
	CodeInvalidEnum        = "invalid_enum"
	CodeNotAllowed         = "not_allowed"
	CodeAggregateViolation = "aggregate_violation"
)

// Issue is a single validation finding anchored to a field path.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s (%s)", i.Path, i.Message, i.Code)
}

func definitionError(section, format string, args ...any) error {
	return fmt.Errorf("%w: section %q: %s", ErrInvalidDefinition, section, fmt.Sprintf(format, args...))
}
