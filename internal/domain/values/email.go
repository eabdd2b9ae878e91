package values

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Email is a normalized, validated account email address.
type Email struct {
	address string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NewEmail lowercases and trims address before validating it.
func NewEmail(address string) (Email, error) {
	if address == "" {
		return Email{}, fmt.Errorf("email address cannot be empty")
	}

	parsed, err := mail.ParseAddress(strings.TrimSpace(strings.ToLower(address)))
	if err != nil {
		return Email{}, fmt.Errorf("invalid email format: %w", err)
	}

	if !emailRegex.MatchString(parsed.Address) {
		return Email{}, fmt.Errorf("email address does not meet format requirements")
	}

	if len(parsed.Address) > 254 {
		return Email{}, fmt.Errorf("email address too long (max 254 characters)")
	}

	return Email{address: parsed.Address}, nil
}

func (e Email) String() string {
	return e.address
}

// LocalPart returns the part before @.
func (e Email) LocalPart() string {
	local, _, _ := strings.Cut(e.address, "@")
	return local
}
