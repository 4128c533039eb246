// Package quant provides exact decimal parsing, exchange tick/step quantization,
// and wire-format rendering. All functions are pure; malformed input always
// surfaces a named error instead of a silently wrong number.
package quant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidNumericInput reports input that cannot be parsed as a decimal number.
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	// ErrTickMismatch reports a price that is not an exact multiple of its tick size.
	ErrTickMismatch = errors.New("price is not a multiple of tick size")
	// ErrStepMismatch reports a quantity that is not an exact multiple of its step size.
	ErrStepMismatch = errors.New("quantity is not a multiple of step size")
)

// TriggerDirection states which way price must move to arm a conditional order.
type TriggerDirection int

const (
	// TriggerAbove arms when the market trades at or above the trigger price.
	TriggerAbove TriggerDirection = iota
	// TriggerBelow arms when the market trades at or below the trigger price.
	TriggerBelow
)

// NormalizeDecimalString parses input that may carry surrounding whitespace or
// thousands separators into an exact decimal value.
func NormalizeDecimalString(input string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(input)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty value", ErrInvalidNumericInput)
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidNumericInput, input)
	}
	return value, nil
}

// QuantizePrice floors value to the nearest multiple of tickSize. Flooring is
// deliberate: rounding up could push a limit price across the trigger it is
// meant to protect.
func QuantizePrice(value, tickSize decimal.Decimal) (decimal.Decimal, error) {
	return quantize(value, tickSize, "tick size")
}

// QuantizeQuantity floors value to the nearest multiple of stepSize so an
// order can never ask for more than the balance that priced it.
func QuantizeQuantity(value, stepSize decimal.Decimal) (decimal.Decimal, error) {
	return quantize(value, stepSize, "step size")
}

func quantize(value, increment decimal.Decimal, what string) (decimal.Decimal, error) {
	if increment.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive %s %s", ErrInvalidNumericInput, what, increment)
	}
	if value.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: negative value %s", ErrInvalidNumericInput, value)
	}
	// Mod is exact, unlike Div which rounds at a fixed precision and could
	// land on the multiple above value. The result must never exceed value.
	return value.Sub(value.Mod(increment)), nil
}

// ValidatePriceTick confirms price is an exact multiple of tickSize.
func ValidatePriceTick(price, tickSize decimal.Decimal) error {
	if tickSize.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive tick size %s", ErrInvalidNumericInput, tickSize)
	}
	if !price.Mod(tickSize).IsZero() {
		return fmt.Errorf("%w: %s %% %s != 0", ErrTickMismatch, price, tickSize)
	}
	return nil
}

// ValidateQtyStep confirms quantity is an exact multiple of stepSize.
func ValidateQtyStep(quantity, stepSize decimal.Decimal) error {
	if stepSize.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive step size %s", ErrInvalidNumericInput, stepSize)
	}
	if !quantity.Mod(stepSize).IsZero() {
		return fmt.Errorf("%w: %s %% %s != 0", ErrStepMismatch, quantity, stepSize)
	}
	return nil
}

// Format renders a decimal in plain notation. shopspring's String never emits
// scientific notation, which is exactly what exchange wire formats expect.
func Format(value decimal.Decimal) string {
	return value.String()
}

// FormatFixed renders a decimal padded to the increment's full precision,
// e.g. 0.14 with tick 0.0001 becomes "0.1400". Some venues reject prices
// whose decimal places don't match the filter exactly.
func FormatFixed(value, increment decimal.Decimal) string {
	places := -increment.Exponent()
	if places < 0 {
		places = 0
	}
	return value.StringFixed(places)
}

// FormatTriggerCondition renders the trigger descriptor the exchange expects:
// ">=" for upward triggers, "<=" for downward ones.
func FormatTriggerCondition(direction TriggerDirection, price decimal.Decimal) string {
	if direction == TriggerAbove {
		return ">=" + Format(price)
	}
	return "<=" + Format(price)
}
