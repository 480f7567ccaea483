package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	nonDigits  = regexp.MustCompile(`\D`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q: must be absolute http(s)", raw)
	}
	return nil
}

// NormalizeDocument strips punctuation from a CPF or CNPJ
func NormalizeDocument(doc string) string {
	return nonDigits.ReplaceAllString(doc, "")
}

// ValidateDocument checks the length of a CPF (11 digits, kind PF)
// or CNPJ (14 digits, kind PJ). An empty document is accepted.
func ValidateDocument(kind, doc string) error {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}

	digits := NormalizeDocument(doc)
	switch kind {
	case "PF":
		if len(digits) != 11 {
			return fmt.Errorf("CPF must have 11 digits: %s", doc)
		}
	case "PJ":
		if len(digits) != 14 {
			return fmt.Errorf("CNPJ must have 14 digits: %s", doc)
		}
	default:
		return fmt.Errorf("unknown client kind: %s", kind)
	}
	return nil
}
