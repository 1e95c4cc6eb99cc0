package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// ValidationResult contains the result of phone number validation.
type ValidationResult struct {
	IsValid             bool   `json:"isValid"`
	E164Format          string `json:"e164Format"`
	InternationalFormat string `json:"internationalFormat"`
	NationalFormat      string `json:"nationalFormat"`
	CountryCode         string `json:"countryCode"`
}

// Validate parses a contact phone number and reports its canonical formats.
// An empty countryCode falls back to US.
func Validate(number, countryCode string) (*ValidationResult, error) {
	if number == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}
	if countryCode == "" {
		countryCode = defaultRegion
	}

	parsed, err := phonenumbers.Parse(number, countryCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	return &ValidationResult{
		IsValid:             phonenumbers.IsValidNumber(parsed),
		E164Format:          phonenumbers.Format(parsed, phonenumbers.E164),
		InternationalFormat: phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		NationalFormat:      phonenumbers.Format(parsed, phonenumbers.NATIONAL),
		CountryCode:         phonenumbers.GetRegionCodeForNumber(parsed),
	}, nil
}

// Normalize converts a phone number to E.164 for storage. Invalid numbers
// are rejected so every stored contact phone is dialable.
func Normalize(number, countryCode string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	if countryCode == "" {
		countryCode = defaultRegion
	}

	parsed, err := phonenumbers.Parse(number, countryCode)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// IsValid reports whether the number parses as a valid phone number for the
// given region without normalizing it.
func IsValid(number, countryCode string) bool {
	if number == "" {
		return false
	}
	if countryCode == "" {
		countryCode = defaultRegion
	}
	parsed, err := phonenumbers.Parse(number, countryCode)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
