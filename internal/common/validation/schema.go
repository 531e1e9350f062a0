package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"job-board/internal/common/errors"
	"job-board/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// nonBlank rejects empty and whitespace-only strings.
var nonBlank = map[string]interface{}{"type": "string", "minLength": 1, "pattern": `\S`}

// JobPostingSchema covers create and edit payloads.
var JobPostingSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"title", "company", "location", "jobtype", "workplace", "openings"},
	"properties": map[string]interface{}{
		"title":     nonBlank,
		"company":   nonBlank,
		"location":  nonBlank,
		"jobtype":   map[string]interface{}{"type": "string", "enum": models.JobTypes},
		"workplace": map[string]interface{}{"type": "string", "enum": models.Workplaces},
		"jobdesc":   map[string]interface{}{"type": "string"},
		"openings":  map[string]interface{}{"type": "integer", "minimum": 1},
		"screeningquestions": map[string]interface{}{
			"type":     "array",
			"maxItems": models.MaxScreeningQuestions,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"question"},
				"properties": map[string]interface{}{
					"question": nonBlank,
				},
			},
		},
	},
}

// ApplicationSchema covers the applicant form fields.
var ApplicationSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"email", "phone"},
	"properties": map[string]interface{}{
		"email": map[string]interface{}{"type": "string", "format": "email"},
		"phone": map[string]interface{}{"type": "string", "minLength": 10},
		"answers": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"question", "answer"},
				"properties": map[string]interface{}{
					"question": map[string]interface{}{"type": "string"},
					"answer":   nonBlank,
				},
			},
		},
	},
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator holds a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schema map[string]interface{}) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// MustValidator panics on schema compile errors; for package-level schemas.
func MustValidator(schema map[string]interface{}) *Validator {
	v, err := NewValidator(schema)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks doc, which may be any JSON-marshalable value. The returned
// error is a VALIDATION_FAILED StandardError listing each failing field.
func (v *Validator) Validate(doc interface{}) error {
	// Round-trip so struct tags decide field names.
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("encode input: %v", err))
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("validate input: %v", err))
	}
	if result.Valid() {
		return nil
	}

	fieldErrs := make([]ValidationError, 0, len(result.Errors()))
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fieldErrs = append(fieldErrs, ValidationError{Field: desc.Field(), Message: desc.Description()})
		msgs = append(msgs, desc.String())
	}
	return errors.NewValidationFailedError(strings.Join(msgs, "; ")).WithMetadata("fields", fieldErrs)
}

var (
	jobPostingValidator  = MustValidator(JobPostingSchema)
	applicationValidator = MustValidator(ApplicationSchema)
)

func ValidateJobPosting(doc interface{}) error {
	return jobPostingValidator.Validate(doc)
}

func ValidateApplication(doc interface{}) error {
	return applicationValidator.Validate(doc)
}

// FieldErrors returns the per-field failures attached to a validation error.
func FieldErrors(err error) []ValidationError {
	stdErr, ok := errors.As(err)
	if !ok || stdErr.Metadata == nil {
		return nil
	}
	fe, _ := stdErr.Metadata["fields"].([]ValidationError)
	return fe
}
