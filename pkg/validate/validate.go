package validate

import "fmt"

// Error codes attached to field errors.
const (
	CodeRequired   = "required"
	CodeInvalid    = "invalid"
	CodeOutOfRange = "out_of_range"
)

// FieldError describes a single invalid field by path.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is an accumulating list of field errors.
type Errors []FieldError

func (e Errors) HasErrors() bool { return len(e) > 0 }

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no errors"
	}
	msg := e[0].Error()
	if len(e) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e)-1)
	}
	return msg
}

// Required appends a missing-field error.
func (e Errors) Required(field string) Errors {
	return append(e, FieldError{Field: field, Code: CodeRequired, Message: field + " is required"})
}

// Invalid appends an invalid-value error with a custom message.
func (e Errors) Invalid(field, msg string) Errors {
	return append(e, FieldError{Field: field, Code: CodeInvalid, Message: msg})
}

// OutOfRange appends a range error.
func (e Errors) OutOfRange(field string, min, max int) Errors {
	return append(e, FieldError{
		Field:   field,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("%s must be between %d and %d", field, min, max),
	})
}
