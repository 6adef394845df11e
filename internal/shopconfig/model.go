// Package shopconfig stores the per-shop unit of measurement and unit price
// and serves them to the admin and to storefront scripts.
package shopconfig

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit is a length unit a merchant can price by.
type Unit string

const (
	// UnitUnset is the sentinel stored before a merchant picks a unit.
	UnitUnset       Unit = "uom"
	UnitCentimeters Unit = "Centimeters (cm)"
	UnitMeters      Unit = "Meters (m)"
	UnitMillimeters Unit = "Millimeters (mm)"
	UnitInches      Unit = "Inches (in)"
	UnitFeet        Unit = "Feet (ft)"
)

// UnitOption pairs a unit with its display label.
type UnitOption struct {
	Label string `json:"label"`
	Value Unit   `json:"value"`
}

var unitOptions = []UnitOption{
	{Label: "select Units Of Measurement", Value: UnitUnset},
	{Label: "Centimeters (cm)", Value: UnitCentimeters},
	{Label: "Meters (m)", Value: UnitMeters},
	{Label: "Millimeters (mm)", Value: UnitMillimeters},
	{Label: "Inches (in)", Value: UnitInches},
	{Label: "Feet (ft)", Value: UnitFeet},
}

// Units lists the selectable units, sentinel first.
func Units() []UnitOption {
	out := make([]UnitOption, len(unitOptions))
	copy(out, unitOptions)
	return out
}

// Valid reports whether u is a known unit or the sentinel.
func (u Unit) Valid() bool {
	for _, opt := range unitOptions {
		if opt.Value == u {
			return true
		}
	}
	return false
}

// IsSet reports whether u names a real unit.
func (u Unit) IsSet() bool {
	return u != UnitUnset && u.Valid()
}

// Configuration is the single pricing setting of a shop.
type Configuration struct {
	Shop              string              `json:"shop"`
	UnitOfMeasurement Unit                `json:"UnitsOfMeasurement"`
	UnitPrice         decimal.NullDecimal `json:"UnitsOfMeasurementPrice"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// normalise enforces that an unset unit never carries a price.
func (c Configuration) normalise() Configuration {
	if !c.UnitOfMeasurement.IsSet() {
		c.UnitPrice = decimal.NullDecimal{}
	}
	return c
}
