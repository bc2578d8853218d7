package fields

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validate checks a raw submitted value against a definition and returns
// the normalized value ready for storage. Pure function: no side effects,
// no store access.
func Validate(def *Definition, raw any) (Value, *FieldError) {
	switch def.Type {
	case TypeShortText, TypeLongText:
		return validateText(def, raw)
	case TypeNumber:
		return validateNumber(def, raw)
	case TypeBoolean:
		return validateBoolean(def, raw)
	case TypeDate:
		return validateDate(def, raw)
	case TypeChoice:
		return validateChoice(def, raw)
	}
	return Value{}, &FieldError{
		Field:   def.Name,
		Reason:  ReasonTypeMismatch,
		Message: fmt.Sprintf("unknown field type %q", def.Type),
	}
}

func validateText(def *Definition, raw any) (Value, *FieldError) {
	s, ok := asString(raw)
	if !ok {
		return Value{}, typeMismatch(def, "must be text")
	}

	max := shortTextMaxLength
	if def.Type == TypeLongText {
		max = 0
	}
	if def.MaxLength != nil {
		max = *def.MaxLength
	}
	if max > 0 && len([]rune(s)) > max {
		return Value{}, &FieldError{
			Field:   def.Name,
			Reason:  ReasonTooLong,
			Message: fmt.Sprintf("must be at most %d characters", max),
		}
	}
	if def.MinLength != nil && len([]rune(s)) < *def.MinLength {
		return Value{}, &FieldError{
			Field:   def.Name,
			Reason:  ReasonOutOfRange,
			Message: fmt.Sprintf("must be at least %d characters", *def.MinLength),
		}
	}

	if def.Pattern != "" {
		// Anchor at the start, matching the original prefix-match behavior.
		re, err := regexp.Compile("^(?:" + def.Pattern + ")")
		if err != nil || !re.MatchString(s) {
			return Value{}, &FieldError{
				Field:   def.Name,
				Reason:  ReasonPatternMismatch,
				Message: "does not match required pattern",
			}
		}
	}

	return Value{Type: def.Type, Text: s}, nil
}

func validateNumber(def *Definition, raw any) (Value, *FieldError) {
	n, ok := asNumber(raw)
	if !ok {
		return Value{}, typeMismatch(def, "must be a number")
	}

	if def.MinValue != nil && n < *def.MinValue {
		return Value{}, outOfRange(def, fmt.Sprintf("must be at least %v", *def.MinValue))
	}
	if def.MaxValue != nil && n > *def.MaxValue {
		return Value{}, outOfRange(def, fmt.Sprintf("must be at most %v", *def.MaxValue))
	}

	return Value{Type: TypeNumber, Number: n}, nil
}

func validateBoolean(def *Definition, raw any) (Value, *FieldError) {
	b, ok := asBool(raw)
	if !ok {
		return Value{}, typeMismatch(def, "must be a boolean")
	}

	v := Value{Type: TypeBoolean}
	if b {
		v.Number = 1
	}
	return v, nil
}

// dateLayouts are the accepted input forms; stored values are always
// RFC3339 in UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func validateDate(def *Definition, raw any) (Value, *FieldError) {
	s, ok := asString(raw)
	if !ok {
		return Value{}, typeMismatch(def, "must be a date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Value{Type: TypeDate, Text: t.UTC().Format(time.RFC3339)}, nil
		}
	}

	return Value{}, typeMismatch(def, "must be a valid date (YYYY-MM-DD or RFC3339)")
}

func validateChoice(def *Definition, raw any) (Value, *FieldError) {
	s, ok := asString(raw)
	if !ok {
		return Value{}, typeMismatch(def, "must be one of the configured choices")
	}

	for _, c := range def.Choices {
		if s == c {
			return Value{Type: TypeChoice, Text: s}, nil
		}
	}

	return Value{}, &FieldError{
		Field:   def.Name,
		Reason:  ReasonInvalidChoice,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(def.Choices, ", ")),
	}
}

func typeMismatch(def *Definition, msg string) *FieldError {
	return &FieldError{Field: def.Name, Reason: ReasonTypeMismatch, Message: msg}
}

func outOfRange(def *Definition, msg string) *FieldError {
	return &FieldError{Field: def.Name, Reason: ReasonOutOfRange, Message: msg}
}

func asString(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

func asNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(raw any) (bool, bool) {
	switch b := raw.(type) {
	case bool:
		return b, true
	case float64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}
