package service

import (
	"strconv"
	"strings"
	"time"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"
)

// PaymentValidator checks the simulated card data of a reservation.
// It only inspects formats and dates; no payment is ever charged.
type PaymentValidator struct {
	minExpiryYear     int
	maxDurationMonths int
	clock             domain.Clock
}

// NewPaymentValidator takes the configured rental cap; values outside
// 1..12 fall back to 12.
func NewPaymentValidator(minExpiryYear, maxDurationMonths int, clock domain.Clock) *PaymentValidator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if maxDurationMonths < models.MinDurationMonths || maxDurationMonths > models.MaxDurationMonths {
		maxDurationMonths = models.MaxDurationMonths
	}
	return &PaymentValidator{minExpiryYear: minExpiryYear, maxDurationMonths: maxDurationMonths, clock: clock}
}

// Validate runs the checks in a fixed order and returns the first failure.
func (v *PaymentValidator) Validate(p models.PaymentInfo, durationMonths int) error {
	if err := ValidateCardNumber(p.CardNumber); err != nil {
		return err
	}
	if err := v.ValidateExpiry(p.ExpiryMonth, p.ExpiryYear); err != nil {
		return err
	}
	if err := ValidateCVV(p.CVV); err != nil {
		return err
	}
	return validateDuration(durationMonths, v.maxDurationMonths)
}

// NormalizeCardNumber removes spaces and dashes.
func NormalizeCardNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

func ValidateCardNumber(s string) error {
	digits := NormalizeCardNumber(s)
	if len(digits) != 16 || !allDigits(digits) {
		return domain.New(domain.KindInvalidCardFormat, "card number must be 16 digits")
	}
	return nil
}

// ValidateExpiry treats the card as valid through the last day of its expiry month.
func (v *PaymentValidator) ValidateExpiry(month, year int) error {
	if month < 1 || month > 12 {
		return domain.New(domain.KindCardExpired, "invalid expiration month")
	}
	year = normalizeYear(year)

	now := v.clock.Now()
	if year < now.Year() || (year == now.Year() && time.Month(month) < now.Month()) {
		return domain.New(domain.KindCardExpired, "card has expired")
	}
	if year < v.minExpiryYear {
		return domain.Newf(domain.KindPolicyRejected, "expiration year must be %d or later", v.minExpiryYear)
	}
	return nil
}

func ValidateCVV(s string) error {
	if len(s) != 3 || !allDigits(s) {
		return domain.New(domain.KindInvalidCvv, "cvv must be 3 digits")
	}
	return nil
}

func ValidateDuration(months int) error {
	return validateDuration(months, models.MaxDurationMonths)
}

func validateDuration(months, maxMonths int) error {
	if months < models.MinDurationMonths || months > maxMonths {
		return domain.Newf(domain.KindInvalidDuration,
			"duration must be between %d and %d months", models.MinDurationMonths, maxMonths)
	}
	return nil
}

// ParseExpiry parses "MM/YY" or "MM/YYYY".
func ParseExpiry(s string) (month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, domain.New(domain.KindCardExpired, "expiry must be MM/YY")
	}
	month, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errM != nil || errY != nil {
		return 0, 0, domain.New(domain.KindCardExpired, "expiry must be MM/YY")
	}
	return month, normalizeYear(year), nil
}

// CardLast4 returns the last four digits of a normalized card number.
func CardLast4(s string) string {
	digits := NormalizeCardNumber(s)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

func normalizeYear(year int) int {
	if year >= 0 && year < 100 {
		return 2000 + year
	}
	return year
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AddMonths moves t forward by n calendar months, clamping the day to the
// end of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return first.AddDate(0, 0, d-1)
}
