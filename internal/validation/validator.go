package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxQuizQuestions     = 50
	DefaultQuizQuestions = 10
	maxSubjectLength     = 100
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a list of field errors; the error middleware renders it as 400.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func missingField(field string) FieldError {
	return FieldError{Field: field, Code: "MISSING_FIELD", Message: "is required"}
}

// InvalidFormat reports a value that could not be parsed.
func InvalidFormat(field, value string) FieldError {
	return FieldError{Field: field, Code: "INVALID_FORMAT", Message: fmt.Sprintf("%q has an invalid format", value)}
}

func outOfRange(field string, value, min, max int) FieldError {
	return FieldError{Field: field, Code: "OUT_OF_RANGE", Message: fmt.Sprintf("%d is outside %d..%d", value, min, max)}
}

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubject checks an optional subject filter.
func (v *Validator) ValidateSubject(subject string) Errors {
	var errs Errors
	if subject == "" {
		return errs
	}
	if !isValidSubject(subject) {
		errs = append(errs, InvalidFormat("subject", subject))
	}
	return errs
}

// ValidateQuizRequest validates the quiz sampling parameters
func (v *Validator) ValidateQuizRequest(subject string, numQuestions int) Errors {
	errs := v.ValidateSubject(subject)
	if numQuestions < 1 || numQuestions > MaxQuizQuestions {
		errs = append(errs, outOfRange("num_questions", numQuestions, 1, MaxQuizQuestions))
	}
	return errs
}

// ValidateCheckRequest validates an answer check
func (v *Validator) ValidateCheckRequest(questionID int64, selected string) Errors {
	var errs Errors
	if questionID <= 0 {
		errs = append(errs, missingField("question_id"))
	}
	s := strings.TrimSpace(selected)
	switch {
	case s == "":
		errs = append(errs, missingField("selected"))
	case len(s) != 1 || !strings.Contains("ABCDabcd", s):
		errs = append(errs, InvalidFormat("selected", selected))
	}
	return errs
}

func isValidSubject(s string) bool {
	if strings.TrimSpace(s) == "" || utf8.RuneCountInString(s) > maxSubjectLength {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
