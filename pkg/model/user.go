package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxUsernameLength leaves room for the terminator in the 32-byte wire field.
	MaxUsernameLength = 31
	// MaxPasswordLength leaves room for the terminator in the 64-byte wire field.
	MaxPasswordLength = 63

	// SystemUsername is the sender name of server notices.
	SystemUsername = "SYSTEM"
)

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
var ErrUsernameReserved = errors.New("username is reserved")
var ErrPasswordEmpty = errors.New("password must not be empty")
var ErrPasswordTooLong = fmt.Errorf("password must not exceed %d bytes", MaxPasswordLength)

// User represents a registered user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername checks that a username is 1-31 ASCII alphanumeric, underscore,
// or hyphen characters and is not the reserved notice sender.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	if strings.EqualFold(name, SystemUsername) {
		return ErrUsernameReserved
	}
	return nil
}

// ValidatePassword checks that a password is non-empty and fits the wire field.
func ValidatePassword(password string) error {
	if len(password) == 0 {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
