package pricing

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount of Kenyan shillings held in cents.
// All arithmetic is integer-only.
type Money int64

// KES creates a Money value from whole shillings.
func KES(shillings int64) Money { return Money(shillings * 100) }

// Cents returns the amount in the smallest unit.
func (m Money) Cents() int64 { return int64(m) }

// Add adds two amounts.
func (m Money) Add(other Money) Money { return m + other }

// Multiply multiplies the amount by a quantity.
func (m Money) Multiply(qty int64) Money { return Money(int64(m) * qty) }

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// Decimal renders the amount as a plain decimal string, e.g. "15000.00".
func (m Money) Decimal() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Format renders the amount with thousands separators, e.g. "15,000.00".
func (m Money) Format() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		c = -c
	}
	whole := strconv.FormatInt(c/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s.%02d", sign, b.String(), c%100)
}

// String renders the amount with its currency, e.g. "KES 15,000.00".
func (m Money) String() string { return "KES " + m.Format() }

// MarshalJSON encodes the amount as a decimal string so clients never see floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.Decimal())), nil
}

// UnmarshalJSON accepts either a decimal string or a JSON number of shillings.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney parses "15000", "15000.5" or "15,000.00" into Money.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	var f int64
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}
	c := w*100 + f
	if neg {
		c = -c
	}
	return Money(c), nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
	case int64:
		*m = Money(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		*m = Money(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		*m = Money(n)
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}
