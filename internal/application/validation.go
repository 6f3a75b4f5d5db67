package application

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// usernamePattern constrains usernames to a leading letter followed by 2 to
// 29 letters, digits, or underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,29}$`)

var platePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

const (
	minBookingDuration = 15 * time.Minute
	maxBookingDuration = 24 * time.Hour
	// maxBookingBackdate bounds how far in the past a booking may start.
	maxBookingBackdate = 24 * time.Hour

	defaultBookingDuration = time.Hour
	defaultRecurrenceSpan  = 90 * 24 * time.Hour
)

const dateLayout = "2006-01-02"

func validateUsername(username string, vErr *ValidationError) {
	if !usernamePattern.MatchString(username) {
		vErr.add("username", "must start with a letter and contain 3-30 letters, digits, or underscores")
	}
}

func validateEmail(email string, vErr *ValidationError) {
	if email == "" {
		vErr.add("email", "email is required")
		return
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		vErr.add("email", "email is invalid")
	}
}

func validatePasswordStrength(password string, vErr *ValidationError) {
	if len(password) < 8 {
		vErr.add("password", "must be at least 8 characters")
		return
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		vErr.add("password", "must contain an uppercase letter, a lowercase letter, and a digit")
	}
}

// normalizePlate uppercases a license plate and strips separators. The result
// is validated against platePattern by validatePlate.
func normalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	plate = strings.ReplaceAll(plate, "-", "")
	plate = strings.ReplaceAll(plate, " ", "")
	return plate
}

func validatePlate(normalized string, vErr *ValidationError) {
	if !platePattern.MatchString(normalized) {
		vErr.add("plate", "must be 2-10 letters or digits")
	}
}

func validateWeekdays(weekdays []time.Weekday, field string, vErr *ValidationError) {
	for _, day := range weekdays {
		if day < time.Sunday || day > time.Saturday {
			vErr.add(field, "weekday out of range")
			return
		}
	}
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
