package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/utils"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type validatedKey string

const (
	bodyKey   validatedKey = "validated_body"
	paramsKey validatedKey = "validated_params"
	queryKey  validatedKey = "validated_query"
)

// Schema names the request parts to validate. Each factory returns a pointer
// to a fresh struct carrying validate, json, param, query and default tags.
type Schema struct {
	Body   func() any
	Params func() any
	Query  func() any
}

// ValidationResponse is the body of a 400 produced by Validate
type ValidationResponse struct {
	Message string        `json:"message"`
	Issues  []utils.Issue `json:"issues"`
}

// Validate parses and validates the request parts named by schema. The parsed
// values are available to handlers through Body, Params and Query. Every
// violation across all parts is reported in a single 400.
func Validate(schema Schema, errHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var issues []utils.Issue
			ctx := r.Context()

			if schema.Body != nil {
				v := schema.Body()
				bodyIssues, err := decodeBody(r, v)
				if err != nil {
					errHandler.Handle(w, r, err)
					return
				}
				issues = append(issues, bodyIssues...)
				issues = append(issues, withoutFields(check(v, "body"), bodyIssues)...)
				ctx = context.WithValue(ctx, bodyKey, v)
			}

			if schema.Params != nil {
				v := schema.Params()
				paramIssues := decodeFields(v, "param", "params", func(name string) (string, bool) {
					value := chi.URLParam(r, name)
					return value, value != ""
				})
				issues = append(issues, paramIssues...)
				issues = append(issues, withoutFields(check(v, "params"), paramIssues)...)
				ctx = context.WithValue(ctx, paramsKey, v)
			}

			if schema.Query != nil {
				v := schema.Query()
				q := r.URL.Query()
				queryIssues := decodeFields(v, "query", "query", func(name string) (string, bool) {
					if !q.Has(name) {
						return "", false
					}
					return q.Get(name), true
				})
				issues = append(issues, queryIssues...)
				issues = append(issues, withoutFields(check(v, "query"), queryIssues)...)
				ctx = context.WithValue(ctx, queryKey, v)
			}

			if len(issues) > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(ValidationResponse{Message: "Validation error", Issues: issues})
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Body returns the validated body, or nil when the route has no body schema
func Body[T any](r *http.Request) *T {
	v, _ := r.Context().Value(bodyKey).(*T)
	return v
}

// Params returns the validated path parameters
func Params[T any](r *http.Request) *T {
	v, _ := r.Context().Value(paramsKey).(*T)
	return v
}

// Query returns the validated query string
func Query[T any](r *http.Request) *T {
	v, _ := r.Context().Value(queryKey).(*T)
	return v
}

func check(v any, section string) []utils.Issue {
	err := utils.ValidateStruct(v, section)
	if err == nil {
		return nil
	}
	var verrs *utils.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.Issues
	}
	return []utils.Issue{{Code: "custom", Path: []string{section}, Message: err.Error()}}
}

// decodeBody fills v from a JSON object body. Malformed JSON or a non-object
// body is returned as an INVALID_JSON error. Each field is decoded on its own
// so every field of the wrong type becomes an issue. An empty body leaves v
// zero so required fields are reported.
func decodeBody(r *http.Request, v any) ([]utils.Issue, error) {
	if r.Body == nil {
		applyDefaults(v)
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, pkgerrors.NewInvalidJSONError(err)
	}
	raw = bytes.TrimSpace(raw)

	var issues []utils.Issue
	if len(raw) > 0 {
		if raw[0] != '{' {
			return nil, pkgerrors.NewInvalidJSONError(errors.New("request body must be a JSON object"))
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, pkgerrors.NewInvalidJSONError(err)
		}

		rv := reflect.ValueOf(v).Elem()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
			if name == "-" || !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			value, ok := lookupField(fields, name)
			if !ok {
				continue
			}
			if err := json.Unmarshal(value, rv.Field(i).Addr().Interface()); err != nil {
				var typeErr *json.UnmarshalTypeError
				if !errors.As(err, &typeErr) {
					return nil, pkgerrors.NewInvalidJSONError(err)
				}
				path := []string{"body", name}
				if typeErr.Field != "" {
					path = append(path, strings.Split(typeErr.Field, ".")...)
				}
				issues = append(issues, utils.Issue{
					Code:    "invalid_type",
					Path:    path,
					Field:   name,
					Message: fmt.Sprintf("%s must be a %s", name, typeErr.Type.Kind()),
				})
				rv.Field(i).SetZero()
			}
		}
	}

	applyDefaults(v)
	return issues, nil
}

// lookupField matches a JSON key the way encoding/json does: exact first,
// then case-insensitive
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if value, ok := fields[name]; ok {
		return value, true
	}
	for key, value := range fields {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// withoutFields drops issues on fields already reported in reported
func withoutFields(issues, reported []utils.Issue) []utils.Issue {
	if len(reported) == 0 {
		return issues
	}
	skip := make(map[string]bool, len(reported))
	for _, issue := range reported {
		if len(issue.Path) > 1 {
			skip[issue.Path[1]] = true
		}
	}
	kept := issues[:0]
	for _, issue := range issues {
		if len(issue.Path) > 1 && skip[issue.Path[1]] {
			continue
		}
		kept = append(kept, issue)
	}
	return kept
}

// decodeFields sets the string, bool, int and float fields of v tagged with
// tag from lookup, then applies defaults to fields that stayed zero
func decodeFields(v any, tag, section string, lookup func(name string) (string, bool)) []utils.Issue {
	rv := reflect.ValueOf(v).Elem()
	rt := rv.Type()

	var issues []utils.Issue
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name := strings.SplitN(sf.Tag.Get(tag), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := setField(rv.Field(i), raw); err != nil {
			issues = append(issues, utils.Issue{
				Code:    "invalid_type",
				Path:    []string{section, name},
				Field:   name,
				Message: fmt.Sprintf("%s must be a %s", name, sf.Type.Kind()),
			})
		}
	}

	applyDefaults(v)
	return issues
}

// applyDefaults copies the default tag into zero-valued fields
func applyDefaults(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		def, ok := rt.Field(i).Tag.Lookup("default")
		if !ok {
			continue
		}
		field := rv.Field(i)
		if !field.IsZero() {
			continue
		}
		if field.Kind() == reflect.Pointer {
			ptr := reflect.New(field.Type().Elem())
			if setField(ptr.Elem(), def) == nil {
				field.Set(ptr)
			}
			continue
		}
		_ = setField(field, def)
	}
}

func setField(field reflect.Value, raw string) error {
	if field.Kind() == reflect.Pointer {
		ptr := reflect.New(field.Type().Elem())
		if err := setField(ptr.Elem(), raw); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
