package validator

import (
	"errors"
	"net/mail"
	"strings"
)

const minPasswordLength = 8

// Email checks address shape and normalizes to lowercase. No network
// lookups; deliverability is the mail server's problem.
func Email(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

func Password(password string) error {
	if len(password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
