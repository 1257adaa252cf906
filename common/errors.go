package common

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("duplicate value")
	ErrInvalidID    = errors.New("invalid identifier")
	ErrNotFound     = errors.New("requested resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden access")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal server error")
)

// Error carries one of the sentinel kinds above plus the client-facing
// message. Cause is only for logs and never reaches a response.
type Error struct {
	Kind    error
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func Validation(field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(field string) error {
	return &Error{Kind: ErrDuplicate, Field: field, Message: field + " already exists"}
}

func InvalidID(field string) error {
	return &Error{Kind: ErrInvalidID, Field: field, Message: "invalid " + field}
}

func NotFound(resource string) error {
	return &Error{Kind: ErrNotFound, Message: resource + " not found"}
}

func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func Unavailable(message string) error {
	return &Error{Kind: ErrUnavailable, Message: message}
}

func Internal(cause error) error {
	return &Error{Kind: ErrInternal, Message: ErrInternal.Error(), Cause: cause}
}

var dupKeyField = regexp.MustCompile(`dup key: \{ ?"?([A-Za-z0-9_.]+)"?\s*:`)

// FromStore maps a driver error onto the taxonomy. resource names the
// document kind for not-found messages.
func FromStore(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return NotFound(resource)
	case mongo.IsDuplicateKeyError(err):
		field := "key"
		if m := dupKeyField.FindStringSubmatch(err.Error()); m != nil {
			field = m[1]
		}
		return Duplicate(field)
	case errors.Is(err, primitive.ErrInvalidHex):
		return InvalidID("id")
	}
	return Internal(err)
}

// FromValidation turns validator output into a validation error naming the
// first failing field.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Validation("", "invalid request body")
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return Validation(field, "%s is required", field)
	case "email":
		return Validation(field, "%s must be a valid email address", field)
	case "oneof":
		return Validation(field, "%s must be one of: %s", field, fe.Param())
	case "min":
		return Validation(field, "%s must be at least %s", field, fe.Param())
	case "max":
		return Validation(field, "%s must be at most %s", field, fe.Param())
	}
	return Validation(field, "%s is invalid", field)
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
