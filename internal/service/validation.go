package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

var (
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	ticketPattern = regexp.MustCompile(`^NDC-[0-9]{6}$`)
)

// NewValidator returns a validator with the portal's custom tags registered: phone and ticket.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ticket", func(fl validator.FieldLevel) bool {
		return ticketPattern.MatchString(fl.Field().String())
	})
	return v
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
