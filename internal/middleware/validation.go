package middleware

import (
	"strconv"
	"strings"

	"github.com/Osyna/QuestionAir/internal/validation"
	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the validation middleware.
const (
	LocalSubject      = "validated_subject"
	LocalKeywords     = "validated_keywords"
	LocalNumQuestions = "validated_num_questions"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateFilter validates the optional subject and keywords query
// parameters.
func (vm *ValidationMiddleware) ValidateFilter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := strings.TrimSpace(c.Query("subject"))
		if errs := vm.validator.ValidateSubject(subject); len(errs) > 0 {
			return errs // rendered by ErrorHandler
		}

		c.Locals(LocalSubject, subject)
		c.Locals(LocalKeywords, ParseKeywords(c.Query("keywords")))
		return c.Next()
	}
}

// ValidateQuizParams validates the filter plus num_questions.
func (vm *ValidationMiddleware) ValidateQuizParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := strings.TrimSpace(c.Query("subject"))

		count := validation.DefaultQuizQuestions
		if raw := c.Query("num_questions"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return validation.Errors{validation.InvalidFormat("num_questions", raw)}
			}
			count = parsed
		}

		if errs := vm.validator.ValidateQuizRequest(subject, count); len(errs) > 0 {
			return errs
		}

		c.Locals(LocalSubject, subject)
		c.Locals(LocalKeywords, ParseKeywords(c.Query("keywords")))
		c.Locals(LocalNumQuestions, count)
		return c.Next()
	}
}

// ParseKeywords splits a comma separated list, dropping blanks.
func ParseKeywords(raw string) []string {
	var keywords []string
	for _, kw := range strings.Split(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
