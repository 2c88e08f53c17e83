package handler

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,20}$`)

const (
	minNameLen     = 2
	maxNameLen     = 100
	minPasswordLen = 8
	maxPasswordLen = 100
)

func validateFullName(name string, errs []FieldError) []FieldError {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < minNameLen || n > maxNameLen {
		return append(errs, FieldError{Field: "full_name", Message: "must be 2 to 100 characters"})
	}
	return errs
}

func validateEmail(email string, errs []FieldError) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(errs, FieldError{Field: "email", Message: "required"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return append(errs, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	return errs
}

func validatePassword(password string, errs []FieldError) []FieldError {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLen || n > maxPasswordLen {
		return append(errs, FieldError{Field: "password", Message: "must be 8 to 100 characters"})
	}
	return errs
}

func validatePhone(phone *string, errs []FieldError) []FieldError {
	if phone != nil && !phonePattern.MatchString(*phone) {
		return append(errs, FieldError{Field: "phone_number", Message: "must be 7 to 20 digits, optionally prefixed with +"})
	}
	return errs
}
