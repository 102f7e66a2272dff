package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator with the "ticketstatus" tag
// registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ticketstatus", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || model.TicketStatus(strings.ToUpper(s)).Valid()
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
