package password

import (
	"errors"
	"fmt"
	"unicode"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// ErrPolicy is returned when a candidate password does not satisfy a [Policy].
var ErrPolicy = errors.New("password does not meet policy")

// Policy describes what a new password must look like.
type Policy struct {
	MinLength int
	// MaxBytes rejects passwords the configured hasher cannot take whole.
	MaxBytes      int
	RequireLetter bool
	RequireDigit  bool
	NoWhitespace  bool
	// MinEntropyBits enables an entropy estimate on top of the character
	// rules. Zero disables it.
	MinEntropyBits float64
}

// DefaultPolicy: at least eight characters with a letter and a digit, no
// whitespace.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxBytes:      BcryptMaxBytes,
		RequireLetter: true,
		RequireDigit:  true,
		NoWhitespace:  true,
	}
}

// Check returns nil when password satisfies p, or an error wrapping [ErrPolicy].
func (p Policy) Check(password string) error {
	if n := len([]rune(password)); n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPolicy, p.MinLength)
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPolicy, p.MaxBytes)
	}

	var letter, digit, space bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
			space = true
		}
	}
	switch {
	case p.RequireLetter && !letter:
		return fmt.Errorf("%w: must contain a letter", ErrPolicy)
	case p.RequireDigit && !digit:
		return fmt.Errorf("%w: must contain a number", ErrPolicy)
	case p.NoWhitespace && space:
		return fmt.Errorf("%w: must not contain whitespace", ErrPolicy)
	}

	if p.MinEntropyBits > 0 {
		if err := passwordvalidator.Validate(password, p.MinEntropyBits); err != nil {
			return fmt.Errorf("%w: %v", ErrPolicy, err)
		}
	}
	return nil
}
