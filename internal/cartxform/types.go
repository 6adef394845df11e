// Package cartxform turns a checkout cart snapshot into the price adjustment
// operations the platform applies to the live cart.
package cartxform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingLines is returned when a snapshot does not carry cart.lines.
var ErrMissingLines = errors.New("cartxform: cart.lines missing from input")

// RunInput is the snapshot the platform hands to the function.
type RunInput struct {
	Cart Cart `json:"cart"`
}

// UnmarshalJSON requires the cart object to be present.
func (in *RunInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Cart *Cart `json:"cart"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Cart == nil {
		return ErrMissingLines
	}
	in.Cart = *raw.Cart
	return nil
}

// Cart is the read-only cart snapshot.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// UnmarshalJSON rejects carts without a lines field so a malformed snapshot
// fails loudly instead of producing an empty result.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lines *[]CartLine `json:"lines"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Lines == nil {
		return ErrMissingLines
	}
	c.Lines = *raw.Lines
	return nil
}

// CartLine is one entry of the cart.
type CartLine struct {
	ID           string        `json:"id"`
	Quantity     int           `json:"quantity,omitempty"`
	Merchandise  Merchandise   `json:"-"`
	Cost         *CartLineCost `json:"cost,omitempty"`
	FabricLength *Attribute    `json:"fabricLength,omitempty"`
}

// UnmarshalJSON decodes the merchandise union alongside the plain fields.
func (l *CartLine) UnmarshalJSON(data []byte) error {
	type plain CartLine
	var raw struct {
		plain
		Merchandise json.RawMessage `json:"merchandise"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = CartLine(raw.plain)
	merch, err := decodeMerchandise(raw.Merchandise)
	if err != nil {
		return fmt.Errorf("cart line %s: %w", raw.ID, err)
	}
	l.Merchandise = merch
	return nil
}

// MarshalJSON re-encodes the merchandise union with its __typename.
func (l CartLine) MarshalJSON() ([]byte, error) {
	type plain CartLine
	return json.Marshal(struct {
		plain
		Merchandise Merchandise `json:"merchandise,omitempty"`
	}{plain: plain(l), Merchandise: l.Merchandise})
}

// CartLineCost mirrors the cost block of a line. The engine carries it but
// never prices from it.
type CartLineCost struct {
	AmountPerQuantity *MoneyV2 `json:"amountPerQuantity,omitempty"`
	TotalAmount       *MoneyV2 `json:"totalAmount,omitempty"`
}

// MoneyV2 is an amount with its currency.
type MoneyV2 struct {
	Amount       Decimal `json:"amount"`
	CurrencyCode string  `json:"currencyCode,omitempty"`
}

// Attribute is a custom line attribute as delivered by the input query.
type Attribute struct {
	Key   string  `json:"key,omitempty"`
	Value Decimal `json:"value"`
}

// Decimal keeps a decimal amount in its textual form. It decodes JSON
// strings and numbers alike and encodes as a JSON string.
type Decimal string

// UnmarshalJSON accepts "12.50", 12.50 and null.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*d = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*d = Decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	*d = Decimal(n.String())
	return nil
}

// IsZero reports whether the value is absent or empty. Whitespace counts as
// a value.
func (d Decimal) IsZero() bool {
	return d == ""
}

// String returns the textual amount.
func (d Decimal) String() string { return string(d) }
