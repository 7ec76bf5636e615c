// Package foundation holds small generic helpers shared by the configuration
// and command layers.
package foundation

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
)

// Validator checks a value and reports field failures.
type Validator[T any] func(T) ValidationResult

// ValidationResult accumulates field failures.
type ValidationResult struct {
	Errors []FieldError
}

// FieldError represents a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Valid reports whether no failures were recorded.
func (vr ValidationResult) Valid() bool { return len(vr.Errors) == 0 }

// Fail builds a result holding one failure.
func Fail(field, code, message string) ValidationResult {
	return ValidationResult{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}

// Combine merges two results.
func (vr ValidationResult) Combine(other ValidationResult) ValidationResult {
	if other.Valid() {
		return vr
	}
	merged := make([]FieldError, 0, len(vr.Errors)+len(other.Errors))
	merged = append(merged, vr.Errors...)
	merged = append(merged, other.Errors...)
	return ValidationResult{Errors: merged}
}

// ToError converts the result into a classified validation error, or nil.
func (vr ValidationResult) ToError() error {
	if vr.Valid() {
		return nil
	}
	messages := make([]string, 0, len(vr.Errors))
	fields := make([]string, 0, len(vr.Errors))
	for _, fe := range vr.Errors {
		messages = append(messages, fe.Error())
		fields = append(fields, fe.Field)
	}
	return errors.ValidationError(strings.Join(messages, "; ")).
		WithContext("fields", fields).
		Build()
}

// ValidatorChain runs validators in order and collects every failure.
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

// Add appends a validator to the chain.
func (vc *ValidatorChain[T]) Add(validator Validator[T]) *ValidatorChain[T] {
	vc.validators = append(vc.validators, validator)
	return vc
}

// Validate runs all validators in the chain.
func (vc *ValidatorChain[T]) Validate(value T) ValidationResult {
	var result ValidationResult
	for _, validator := range vc.validators {
		result = result.Combine(validator(value))
	}
	return result
}

// OneOf checks that get(value) is in allowed.
func OneOf[T any, V comparable](field string, get func(T) V, allowed ...V) Validator[T] {
	set := make(map[V]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(value T) ValidationResult {
		if _, ok := set[get(value)]; !ok {
			return Fail(field, "one_of", fmt.Sprintf("must be one of %v", allowed))
		}
		return ValidationResult{}
	}
}

// PositiveDuration checks that get(value) is greater than zero.
func PositiveDuration[T any](field string, get func(T) time.Duration) Validator[T] {
	return func(value T) ValidationResult {
		if get(value) <= 0 {
			return Fail(field, "positive", "must be greater than zero")
		}
		return ValidationResult{}
	}
}

// AtLeast checks that get(value) >= minimum.
func AtLeast[T any](field string, get func(T) int, minimum int) Validator[T] {
	return func(value T) ValidationResult {
		if get(value) < minimum {
			return Fail(field, "min", fmt.Sprintf("must be at least %d", minimum))
		}
		return ValidationResult{}
	}
}

// Required checks that get(value) is not blank.
func Required[T any](field string, get func(T) string) Validator[T] {
	return func(value T) ValidationResult {
		if strings.TrimSpace(get(value)) == "" {
			return Fail(field, "required", "is required")
		}
		return ValidationResult{}
	}
}
