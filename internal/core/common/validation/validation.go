package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	errors "github.com/imec-int/monument-plwd-sub001/internal"
)

// ValidatorFunc checks a single value. A nil result means the value passed.
type ValidatorFunc func(interface{}) *errors.AppError

// FieldValidator accumulates the rules of one field.
type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

// ValidationBuilder runs every rule of every field and reports all
// failures at once, in field order.
type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{FieldName: name, Value: value}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) add(fn ValidatorFunc) *FieldValidator {
	fv.Validators = append(fv.Validators, fn)
	return fv
}

func (fv *FieldValidator) fail(code errors.ErrorCode, format string, args ...any) *errors.AppError {
	return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf(format, args...), code)
}

// stringRule applies check to non-empty strings and ignores everything else.
func (fv *FieldValidator) stringRule(check func(string) *errors.AppError) *FieldValidator {
	return fv.add(func(value interface{}) *errors.AppError {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		return check(s)
	})
}

func (fv *FieldValidator) Required() *FieldValidator {
	return fv.add(func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case nil:
			missing = true
		case string:
			missing = strings.TrimSpace(v) == ""
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		case []string:
			missing = len(v) == 0
		}
		if missing {
			return fv.fail(errors.ErrCodeValidationFailed, "%s is required", fv.FieldName)
		}
		return nil
	})
}

// MinLength and MaxLength count characters, not bytes.
func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	return fv.stringRule(func(s string) *errors.AppError {
		if utf8.RuneCountInString(s) < min {
			return fv.fail(errors.ErrCodeValidationFailed, "%s must be at least %d characters", fv.FieldName, min)
		}
		return nil
	})
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	return fv.stringRule(func(s string) *errors.AppError {
		if utf8.RuneCountInString(s) > max {
			return fv.fail(errors.ErrCodeValidationFailed, "%s must not exceed %d characters", fv.FieldName, max)
		}
		return nil
	})
}

// Email accepts a bare address only; "Name <addr>" is rejected.
func (fv *FieldValidator) Email() *FieldValidator {
	return fv.stringRule(func(s string) *errors.AppError {
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != strings.TrimSpace(s) {
			return fv.fail(errors.ErrCodeInvalidEmail, "%s must be a valid email address", fv.FieldName)
		}
		return nil
	})
}

func (fv *FieldValidator) OneOf(allowed ...string) *FieldValidator {
	return fv.stringRule(func(s string) *errors.AppError {
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fv.fail(errors.ErrCodeValidationFailed, "%s must be one of: %s", fv.FieldName, strings.Join(allowed, ", "))
	})
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	return fv.add(validator)
}

// flatten turns one failed rule into field errors. Rules that already carry
// field details keep them.
func flatten(field string, appErr *errors.AppError) []errors.ValidationError {
	if details, ok := appErr.Details.(errors.ValidationErrors); ok {
		return details.Errors
	}
	return []errors.ValidationError{{
		Field:   field,
		Message: appErr.Message,
		Code:    string(appErr.Code),
	}}
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var failed []errors.ValidationError
	for _, field := range v.fields {
		for _, rule := range field.Validators {
			if appErr := rule(field.Value); appErr != nil {
				failed = append(failed, flatten(field.FieldName, appErr)...)
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: failed})
}
