package api

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// same rule the browser client applies before submitting
	mailboxRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	return v
}

// ValidEmail reports whether addr looks like an email address
func ValidEmail(addr string) bool {
	return mailboxRE.MatchString(addr)
}

// failedTag returns the first validation tag that failed, or an empty
// string when err does not come from the validator.
func failedTag(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ""
	}
	return verrs[0].Tag()
}
