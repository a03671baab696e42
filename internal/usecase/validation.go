package usecase

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xavierca1/leadsync/internal/entity"
)

const (
	maxNameLength    = 200
	maxMessageLength = 2000
)

var (
	e164Pattern  = regexp.MustCompile(`^\+[0-9]{10,15}$`)
	nonDigitsExp = regexp.MustCompile(`\D`)
)

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCreateLeadInput checks the request shape before any external
// lookup happens.
func ValidateCreateLeadInput(input CreateLeadInput) []FieldError {
	var errors []FieldError

	if !input.LeadType.Valid() {
		errors = append(errors, FieldError{"LeadType", "must be MESSAGE or CALLBACK"})
	}
	if strings.TrimSpace(input.UniversalRetailerID) == "" {
		errors = append(errors, FieldError{"UniversalRetailerId", "is required"})
	}
	if strings.TrimSpace(input.LocationID) == "" {
		errors = append(errors, FieldError{"LocationId", "is required"})
	}

	name := strings.TrimSpace(input.Lead.Name)
	if name == "" {
		errors = append(errors, FieldError{"Lead.Name", "is required"})
	} else if utf8.RuneCountInString(name) > maxNameLength {
		errors = append(errors, FieldError{"Lead.Name", "must not exceed 200 characters"})
	}

	if strings.TrimSpace(input.Lead.PhoneNumber) == "" {
		errors = append(errors, FieldError{"Lead.PhoneNumber", "is required"})
	} else if !isValidPhoneNumber(input.Lead.PhoneNumber) {
		errors = append(errors, FieldError{"Lead.PhoneNumber", "must be an E.164 number"})
	}

	if input.Lead.Email != "" {
		if _, err := mail.ParseAddress(input.Lead.Email); err != nil {
			errors = append(errors, FieldError{"Lead.Email", "is invalid"})
		}
	}

	message := strings.TrimSpace(input.Lead.Message)
	if input.LeadType == entity.LeadTypeMessage && message == "" {
		errors = append(errors, FieldError{"Lead.Message", "is required for MESSAGE leads"})
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		errors = append(errors, FieldError{"Lead.Message", "must not exceed 2000 characters"})
	}

	return errors
}

func isValidPhoneNumber(phone string) bool {
	return e164Pattern.MatchString(phone)
}

// samePhoneNumber compares numbers by their digits only.
func samePhoneNumber(a, b string) bool {
	da := nonDigitsExp.ReplaceAllString(a, "")
	db := nonDigitsExp.ReplaceAllString(b, "")
	return da != "" && da == db
}

func fieldErrorsMessage(errs []FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+" ("+e.Message+")")
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
