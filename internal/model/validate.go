package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidate() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidationError reports the field-level violations found by Validate.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow definition: %s", strings.Join(e.Violations, "; "))
}

// Validate checks field-level constraints on a WorkflowDefinition (required
// ids, non-empty node lists, non-empty types). It does not check structural
// invariants like cycles or dangling connections; BuildGraph owns those.
func Validate(def *WorkflowDefinition) error {
	if err := getValidate().Struct(def); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		violations := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			violations = append(violations, describeFieldError(fe))
		}
		return &ValidationError{Violations: violations}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", fe.Namespace(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}
