package cartxform

import (
	"encoding/json"
	"io"
)

// FunctionRunResult is what the function hands back to the platform.
type FunctionRunResult struct {
	Operations []CartOperation `json:"operations"`
}

// CartOperation is a tagged union; update is the only member built here.
type CartOperation struct {
	Update *UpdateOperation `json:"update,omitempty"`
}

// UpdateOperation overrides the price of a single line.
type UpdateOperation struct {
	CartLineID string      `json:"cartLineId"`
	Price      PriceUpdate `json:"price"`
}

// PriceUpdate wraps the adjustment applied to a line.
type PriceUpdate struct {
	Adjustment PriceAdjustment `json:"adjustment"`
}

// PriceAdjustment carries the new per-unit price.
type PriceAdjustment struct {
	FixedPricePerUnit FixedPricePerUnit `json:"fixedPricePerUnit"`
}

// FixedPricePerUnit is the amount charged for each unit of the line.
type FixedPricePerUnit struct {
	Amount Decimal `json:"amount"`
}

// NoChanges returns the canonical result for carts that need no adjustment.
func NoChanges() FunctionRunResult {
	return FunctionRunResult{Operations: []CartOperation{}}
}

// Run builds one update operation per qualifying line, in line order. A line
// qualifies when it references a product variant and carries a non-empty
// fabric length value; that value is used verbatim as the new unit price.
func Run(input RunInput) FunctionRunResult {
	ops := make([]CartOperation, 0, len(input.Cart.Lines))
	for _, line := range input.Cart.Lines {
		if update, ok := buildUpdate(line); ok {
			ops = append(ops, CartOperation{Update: &update})
		}
	}
	if len(ops) == 0 {
		return NoChanges()
	}
	return FunctionRunResult{Operations: ops}
}

func buildUpdate(line CartLine) (UpdateOperation, bool) {
	if line.FabricLength == nil || line.FabricLength.Value.IsZero() {
		return UpdateOperation{}, false
	}
	switch line.Merchandise.(type) {
	case ProductVariant:
		return UpdateOperation{
			CartLineID: line.ID,
			Price: PriceUpdate{
				Adjustment: PriceAdjustment{
					FixedPricePerUnit: FixedPricePerUnit{Amount: line.FabricLength.Value},
				},
			},
		}, true
	case OtherMerchandise, nil:
	}
	return UpdateOperation{}, false
}

// Decode reads a RunInput from r.
func Decode(r io.Reader) (RunInput, error) {
	var input RunInput
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return RunInput{}, err
	}
	return input, nil
}

// Encode writes result to w as a single JSON document.
func Encode(w io.Writer, result FunctionRunResult) error {
	if result.Operations == nil {
		result.Operations = []CartOperation{}
	}
	return json.NewEncoder(w).Encode(result)
}
