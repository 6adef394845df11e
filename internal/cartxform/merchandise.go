package cartxform

import (
	"encoding/json"
	"errors"
)

const typenameProductVariant = "ProductVariant"

// Merchandise is the closed set of things a cart line can reference. Only
// this package can add members.
type Merchandise interface {
	Typename() string
	isMerchandise()
}

// ProductVariant is a purchasable product configuration.
type ProductVariant struct {
	ID string `json:"id,omitempty"`
}

// Typename implements Merchandise.
func (ProductVariant) Typename() string { return typenameProductVariant }

func (ProductVariant) isMerchandise() {}

// MarshalJSON writes the __typename discriminator.
func (p ProductVariant) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Typename string `json:"__typename"`
		ID       string `json:"id,omitempty"`
	}{Typename: typenameProductVariant, ID: p.ID})
}

// OtherMerchandise covers every merchandise kind the engine does not price.
type OtherMerchandise struct {
	Kind string
}

// Typename implements Merchandise.
func (o OtherMerchandise) Typename() string { return o.Kind }

func (OtherMerchandise) isMerchandise() {}

// MarshalJSON writes the original discriminator back.
func (o OtherMerchandise) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Typename string `json:"__typename,omitempty"`
	}{Typename: o.Kind})
}

func decodeMerchandise(raw json.RawMessage) (Merchandise, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return OtherMerchandise{}, nil
	}
	var head struct {
		Typename string `json:"__typename"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errors.Join(errors.New("decode merchandise"), err)
	}
	if head.Typename == typenameProductVariant {
		return ProductVariant{ID: head.ID}, nil
	}
	return OtherMerchandise{Kind: head.Typename}, nil
}
