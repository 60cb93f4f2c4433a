package httpadapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Mode      string `json:"answer_mode" validate:"omitempty,oneof=FAST NORMAL fast normal"`
	RequestID string `json:"rid" validate:"omitempty,max=64"`
}

type cancelRequest struct {
	RequestID string `json:"rid" validate:"required,max=64"`
}

type clearRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

type reloadRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

type errorResponse struct {
	OK        bool     `json:"ok"`
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// validateRequest runs struct tags and wraps failures as invalid input.
func validateRequest(v *validator.Validate, operation string, req any) error {
	if err := v.Struct(req); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	}
	return nil
}

// validationDetails flattens validator errors into field messages.
func validationDetails(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, field+" is required")
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of %s", field, fe.Param()))
		default:
			out = append(out, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return out
}
