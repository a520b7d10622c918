package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateTurnText validates the text of a user or agent turn.
func ValidateTurnText(text string) error {
	if len(strings.TrimSpace(text)) == 0 {
		return errors.New("text cannot be empty")
	}
	if len(text) > 10000 {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateTicketID validates a ticket ID.
func ValidateTicketID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid ticket ID format")
	}
	return nil
}

// ValidateRating validates a ticket satisfaction rating.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}
