package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorResponse is the body of every non-validation error response
type ErrorResponse struct {
	Detail        string `json:"detail"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ValidationError collects field level messages. It renders as {field: [message]}.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add appends a message for field
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// OrNil returns v as an error when it carries messages, nil otherwise
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ValidationMessages maps validator tags to user-facing messages
var ValidationMessages = map[string]string{
	"required": "This field is required.",
	"max":      "Ensure this field is not too long.",
	"min":      "Ensure this field is not too short.",
	"gte":      "Ensure this value is not too small.",
	"gt":       "Ensure this value is greater than zero.",
	"lte":      "Ensure this value is not too large.",
	"oneof":    "Not a valid choice.",
	"datetime": "Date has wrong format. Use YYYY-MM-DD.",
	"dive":     "Invalid item.",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Invalid value."
}
