// Package render writes the JSON envelopes returned by the llmgate API.
//
// Every failed request gets an ErrorResponse. The error field tells the
// client which stage rejected it: the request body could not be decoded,
// a field of an auth, prompt or ask payload broke its rule, or the service
// refused the call (bad credentials, missing prompt, upstream model down).
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

var validate = validator.New()

func init() {
	// Field errors are keyed by the name clients send, e.g. "max_tokens".
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	JSONWithStatus(w, data, http.StatusOK)
}

// ServiceError reports a refusal from the auth, prompt or llm services.
func ServiceError(w http.ResponseWriter, message string, code int) {
	JSONWithStatus(w, ErrorResponse{Error: ServiceErrorType, Message: message}, code)
}

func DecodeError(w http.ResponseWriter, err error) {
	var (
		typeErr *json.UnmarshalTypeError
		message string
	)

	switch {
	case errors.Is(err, io.EOF):
		message = "Request body is empty"
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	JSONWithStatus(w, ErrorResponse{Error: DecodingErrorType, Message: message}, http.StatusBadRequest)
}

func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	for _, fe := range errs {
		response.Fields[fe.Field()] = fieldMessage(fe)
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// fieldMessage covers the tags used by the request payloads. Anything else
// falls back to a generic message.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
	case "max":
		return fmt.Sprintf("Value is too long (maximum %s)", fe.Param())
	case "gt":
		return fmt.Sprintf("Value must be greater than %s", fe.Param())
	case "email":
		return "Must be a valid email address"
	default:
		return "Invalid value"
	}
}

// BindAndValidate reads a request payload into T and checks its validate tags.
// On failure the 400 response is already written and the caller only returns.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var payload T

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		DecodeError(w, err)
		return payload, err
	}

	err := validate.Struct(payload)
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		ValidationErrors(w, errs)
		return payload, err
	}
	if err != nil {
		// T is not a struct. A handler bug, not a client one.
		ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return payload, err
	}

	return payload, nil
}

// JSONWithStatus encodes data before touching the headers, so an encoding
// failure still yields a clean 500.
func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
