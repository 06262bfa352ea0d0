package intake

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// stringValue renders a present value as text for string-shaped checks.
func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

// Pattern fails with CodePattern when the text form of the value does not
// match expr. It panics on an invalid expression, like regexp.MustCompile.
func Pattern(expr, message string) Check {
	re := regexp.MustCompile(expr)
	if message == "" {
		message = "Invalid format"
	}
	return func(_ CheckContext, value any) *Issue {
		if !re.MatchString(stringValue(value)) {
			return &Issue{Code: CodePattern, Message: message}
		}
		return nil
	}
}

func MinLength(n int, message string) Check {
	if message == "" {
		message = fmt.Sprintf("Must be at least %d characters", n)
	}
	return func(_ CheckContext, value any) *Issue {
		if len([]rune(strings.TrimSpace(stringValue(value)))) < n {
			return &Issue{Code: CodeTooSmall, Message: message}
		}
		return nil
	}
}

func MaxLength(n int, message string) Check {
	if message == "" {
		message = fmt.Sprintf("Must be at most %d characters", n)
	}
	return func(_ CheckContext, value any) *Issue {
		if len([]rune(stringValue(value))) > n {
			return &Issue{Code: CodeTooBig, Message: message}
		}
		return nil
	}
}

// Min fails with CodeTooSmall when the numeric value is below n. Values that
// are not numeric fail with CodeInvalidType.
func Min(n float64, message string) Check {
	if message == "" {
		message = fmt.Sprintf("Must be at least %s", strconv.FormatFloat(n, 'f', -1, 64))
	}
	return func(_ CheckContext, value any) *Issue {
		f, ok := toFloat(value)
		if !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a number"}
		}
		if f < n {
			return &Issue{Code: CodeTooSmall, Message: message}
		}
		return nil
	}
}

func Max(n float64, message string) Check {
	if message == "" {
		message = fmt.Sprintf("Must be at most %s", strconv.FormatFloat(n, 'f', -1, 64))
	}
	return func(_ CheckContext, value any) *Issue {
		f, ok := toFloat(value)
		if !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a number"}
		}
		if f > n {
			return &Issue{Code: CodeTooBig, Message: message}
		}
		return nil
	}
}

// YearRange accepts years from min up to the current year plus ahead, where
// the current year comes from the check clock.
func YearRange(min, ahead int, message string) Check {
	return func(ctx CheckContext, value any) *Issue {
		year, ok := toFloat(value)
		if !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a year"}
		}
		max := ctx.Now.Year() + ahead
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("Year must be between %d and %d", min, max)
		}
		if int(year) < min {
			return &Issue{Code: CodeTooSmall, Message: msg}
		}
		if int(year) > max {
			return &Issue{Code: CodeTooBig, Message: msg}
		}
		return nil
	}
}

// NotOneOf rejects the listed values with CodeNotAllowed.
func NotOneOf(values []string, message string) Check {
	values = slices.Clone(values)
	if message == "" {
		message = "Value is not allowed"
	}
	return func(_ CheckContext, value any) *Issue {
		if slices.Contains(values, stringValue(value)) {
			return &Issue{Code: CodeNotAllowed, Message: message}
		}
		return nil
	}
}

// PastDate rejects dates after the check clock.
func PastDate(message string) Check {
	if message == "" {
		message = "Date must not be in the future"
	}
	return func(ctx CheckContext, value any) *Issue {
		ts, ok := toDate(value)
		if !ok {
			return &Issue{Code: CodeInvalidType, Message: "Expected a date"}
		}
		if ts.After(ctx.Now) {
			return &Issue{Code: CodeTooBig, Message: message}
		}
		return nil
	}
}
