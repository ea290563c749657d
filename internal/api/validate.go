package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"stemforge/internal/queue"
	"stemforge/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidationError lists the offending fields of a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, e.Fields[name]))
	}
	return "validation error: invalid fields: " + strings.Join(parts, ", ")
}

// Is lets callers match the shared validation marker.
func (e *ValidationError) Is(target error) bool {
	return target == services.ErrValidation
}

// Validate checks the request against its field rules.
func (r SubmitRequest) Validate() error {
	return check(r)
}

// Submission converts a validated request into a queue submission.
func (r SubmitRequest) Submission() queue.Submission {
	return queue.Submission{
		Query:           r.Query,
		OutputDirectory: r.OutputDirectory,
		UploadRequested: r.UploadRequested,
		Metadata:        r.Metadata,
	}
}

// Validate checks the request against its field rules.
func (r MetadataRequest) Validate() error {
	return check(r)
}

func check(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return services.Wrap(services.ErrValidation, "api", "validate", "", err)
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
