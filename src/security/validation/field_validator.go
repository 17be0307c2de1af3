package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/username/poolcosts/backend/src/logger"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	MaxVendorLength   = 255
	MaxCategoryLength = 64
	MaxNoteLength     = 1024
	MinYear           = 2000
	MaxYear           = 2100
)

// MaxAmount is the largest amount a cost may carry.
var MaxAmount = decimal.NewFromInt(1_000_000)

// SupportedCurrency is the only currency costs may be booked in.
const SupportedCurrency = "EUR"

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateAmount accepts amounts in (0, MaxAmount] and rounds them to cents.
func ValidateAmount(v float64, fieldName string) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrValidationFailed, fieldName)
	}
	d := decimal.NewFromFloat(v).Round(2)
	if !d.IsPositive() {
		logger.L.Warn("Non-positive amount rejected", "field", fieldName, "value", v)
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than 0", ErrValidationFailed, fieldName)
	}
	if d.GreaterThan(MaxAmount) {
		logger.L.Warn("Amount out of range", "field", fieldName, "value", v)
		return decimal.Zero, fmt.Errorf("%w: %s must not exceed %s", ErrValidationFailed, fieldName, MaxAmount.String())
	}
	return d, nil
}

// ValidateDateString parses a YYYY-MM-DD date. An empty string yields today.
func ValidateDateString(s, fieldName string, today time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		y, m, d := today.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

// ValidateCurrencyCode normalises the code and accepts only SupportedCurrency. Empty means SupportedCurrency.
func ValidateCurrencyCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return SupportedCurrency, nil
	}
	if code != SupportedCurrency {
		return "", fmt.Errorf("%w: currency '%s' is not supported, only %s", ErrValidationFailed, s, SupportedCurrency)
	}
	return code, nil
}

// ValidateYearString parses an optional year query parameter. Empty means all years (0).
func ValidateYearString(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: year ('%s') is not a valid integer", ErrValidationFailed, s)
	}
	if year < MinYear || year > MaxYear {
		return 0, fmt.Errorf("%w: year must be between %d and %d, got %d", ErrValidationFailed, MinYear, MaxYear, year)
	}
	return year, nil
}

// ValidateVendor trims, sanitises and length-checks a vendor name.
func ValidateVendor(s string) (string, error) {
	v := strings.TrimSpace(SanitizeText(StripUnprintable(s)))
	if err := ValidateStringNotEmpty(v, "vendor"); err != nil {
		return "", err
	}
	if err := ValidateStringMaxLength(v, MaxVendorLength, "vendor"); err != nil {
		return "", err
	}
	return v, nil
}

// ValidateOptionalText sanitises an optional free-text field. Blank input becomes nil.
func ValidateOptionalText(s *string, maxLength int, fieldName string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(SanitizeText(StripUnprintable(*s)))
	if v == "" {
		return nil, nil
	}
	if err := ValidateStringMaxLength(v, maxLength, fieldName); err != nil {
		return nil, err
	}
	return &v, nil
}
