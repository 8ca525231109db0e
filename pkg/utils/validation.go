package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	cuidPattern = regexp.MustCompile(`^[a-z0-9]{25}$`)
	uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "param", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = v.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
		return IsResourceID(fl.Field().String())
	})

	return v
}

// IsResourceID reports whether id is a CUID (25 lowercase alphanumerics) or a UUID
func IsResourceID(id string) bool {
	return cuidPattern.MatchString(id) || uuidPattern.MatchString(id)
}

// Issue is one violated constraint
type Issue struct {
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Field   string   `json:"field"`
	Message string   `json:"message"`
}

// ValidationErrors is returned when a struct violates its tags. It carries
// every violation, not just the first.
type ValidationErrors struct {
	Issues []Issue
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct based on its validation tags. section is
// prefixed to every issue path ("body", "params", "query"); pass "" for none.
func ValidateStruct(s interface{}, section string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	issues := make([]Issue, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		issues = append(issues, toIssue(fe, section))
	}
	return &ValidationErrors{Issues: issues}
}

func toIssue(e validator.FieldError, section string) Issue {
	path := strings.Split(e.Namespace(), ".")
	if len(path) > 1 {
		// drop the struct type name
		path = path[1:]
	}
	if section != "" {
		path = append([]string{section}, path...)
	}

	return Issue{
		Code:    e.Tag(),
		Path:    path,
		Field:   e.Field(),
		Message: formatFieldError(e),
	}
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	case "resourceid":
		return fmt.Sprintf("%s must be a valid CUID or UUID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
