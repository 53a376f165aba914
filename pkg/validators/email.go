// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"regexp"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
)

// Deliberately loose: something@something.tld without whitespace
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if !emailPattern.MatchString(e) {
		return ErrEmailInvalid
	}

	return nil
}
