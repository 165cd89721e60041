package giftcert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT LIMITS - Checked before any arithmetic touches a request amount
// =============================================================================

const (
	// MaxAmountScale is the most decimal places any amount may carry. No
	// ISO 4217 currency has more than four minor-unit digits.
	MaxAmountScale = 4

	// MaxAmountIntegerDigits bounds amounts below 10^12.
	MaxAmountIntegerDigits = 12

	// maxCoefficientBits rejects absurdly long digit strings before they are
	// formatted or compared.
	maxCoefficientBits = 256
)

// minorUnits lists currencies whose minor unit is not the cents default.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0,
	"XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLF": 4, "UYW": 4,
}

// MinorUnits returns how many decimal places currency supports.
func MinorUnits(currency string) int32 {
	if n, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return n
	}
	return 2
}

// checkAmountBounds rejects amounts whose precision or magnitude is out of
// range. It only inspects the exponent and coefficient size, so it is cheap
// for any input the JSON decoder accepted.
func checkAmountBounds(amount decimal.Decimal) error {
	exp := int64(amount.Exponent())
	if -exp > MaxAmountScale {
		return fmt.Errorf("%w: at most %d decimal places allowed", ErrInvalidAmount, MaxAmountScale)
	}
	coeff := amount.Coefficient()
	if coeff.BitLen() > maxCoefficientBits {
		return fmt.Errorf("%w: amount has too many digits", ErrInvalidAmount)
	}
	if coeff.Sign() == 0 {
		return nil
	}
	digits := int64(len(strings.TrimPrefix(coeff.String(), "-")))
	if digits+exp > MaxAmountIntegerDigits {
		return fmt.Errorf("%w: amount exceeds %d integer digits", ErrInvalidAmount, MaxAmountIntegerDigits)
	}
	return nil
}

// ValidateAmount checks that amount is positive, within bounds, and no finer
// than currency's minor unit.
func ValidateAmount(amount decimal.Decimal, currency string) error {
	if err := checkAmountBounds(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	minor := MinorUnits(currency)
	if !amount.Truncate(minor).Equal(amount) {
		return fmt.Errorf("%w: %s allows %d decimal places, got %s", ErrInvalidAmount, currency, minor, amount)
	}
	return nil
}

// auditAmount renders amount for logs and audit details without expanding
// out-of-range exponents into huge digit strings.
func auditAmount(amount decimal.Decimal) string {
	if checkAmountBounds(amount) == nil {
		return amount.String()
	}
	coeff := amount.Coefficient()
	if coeff.BitLen() > maxCoefficientBits {
		return "out-of-range"
	}
	return fmt.Sprintf("%se%d", coeff.String(), amount.Exponent())
}
