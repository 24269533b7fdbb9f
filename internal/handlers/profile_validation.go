package handlers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxDisplayNameLength = 64
	maxAboutLength       = 140
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

func validateProfileUpdateRequest(req updateProfileRequest) string {
	if req.DisplayName == nil && req.About == nil && req.Phone == nil {
		return "at least one field must be provided"
	}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return "display_name must not be empty"
		}
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return "display_name is too long"
		}
	}
	if req.About != nil && utf8.RuneCountInString(*req.About) > maxAboutLength {
		return "about must be at most 140 characters"
	}
	if req.Phone != nil {
		if err := validatePhone(*req.Phone); err != "" {
			return err
		}
	}
	return ""
}

// validatePhone accepts an empty value, which clears the number.
func validatePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if !phonePattern.MatchString(phone) {
		return "phone must contain 7 to 20 digits"
	}
	return ""
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
