package shopconfig

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/fabric-pricing/internal/common"
)

const (
	msgFillAllFields   = "Please fill out all fields"
	msgUnsupportedUnit = "Unsupported unit of measurement"
	msgInvalidPrice    = "Price must be a positive number"
	msgPriceRange      = "Price must have at most 8 digits before and 4 after the decimal point"
)

// Prices are stored as NUMERIC(12, 4).
const (
	priceScale         = 4
	priceIntegerDigits = 8
)

var priceCeiling = decimal.New(1, priceIntegerDigits)

// SaveForm is the admin form submitted to persist a configuration.
type SaveForm struct {
	UnitsOfMeasurement      string `validate:"required,unit"`
	UnitsOfMeasurementPrice string `validate:"required_unless=UnitsOfMeasurement uom"`
}

// NewValidator returns a validator that knows the "unit" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		return Unit(fl.Field().String()).Valid()
	})
	return v
}

// Parse validates the form and returns the unit and price it describes.
func (f SaveForm) Parse(v *validator.Validate) (Unit, decimal.NullDecimal, error) {
	f.UnitsOfMeasurement = strings.TrimSpace(f.UnitsOfMeasurement)
	f.UnitsOfMeasurementPrice = strings.TrimSpace(f.UnitsOfMeasurementPrice)

	if err := v.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return "", decimal.NullDecimal{}, err
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" || fe.Tag() == "required_unless" {
				return "", decimal.NullDecimal{}, common.ValidationError(msgFillAllFields)
			}
		}
		return "", decimal.NullDecimal{}, common.ValidationError(msgUnsupportedUnit)
	}

	unit := Unit(f.UnitsOfMeasurement)
	if !unit.IsSet() {
		return unit, decimal.NullDecimal{}, nil
	}
	price, err := decimal.NewFromString(f.UnitsOfMeasurementPrice)
	if err != nil || price.IsNegative() {
		return "", decimal.NullDecimal{}, common.ValidationError(msgInvalidPrice)
	}
	if !price.Equal(price.Truncate(priceScale)) || price.Truncate(0).Cmp(priceCeiling) >= 0 {
		return "", decimal.NullDecimal{}, common.ValidationError(msgPriceRange)
	}
	return unit, decimal.NewNullDecimal(price), nil
}
