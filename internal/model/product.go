package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is a catalog product sold in wholesale packages.
type Product struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Manufacturer     string          `json:"manufacturer"`
	WholesalePackage string          `json:"wholesale_package"`
	WholesalePrice   decimal.Decimal `json:"wholesale_price"`
	RetailPackage    string          `json:"retail_package"`
	// UnitsPerPackage is how many retail units one wholesale package holds.
	UnitsPerPackage int `json:"units_per_package"`
}

// Variant is an alternate package of a product with its own price.
type Variant struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	Package         string          `json:"package"`
	Price           decimal.Decimal `json:"price"`
	UnitsPerPackage int             `json:"units_per_package"`
}

// ManufacturerRate is the transfer discount percentage for a manufacturer.
type ManufacturerRate struct {
	Manufacturer string          `json:"manufacturer"`
	Rate         decimal.Decimal `json:"rate"`
}

// Resolution is a product or variant resolved to one priceable unit.
type Resolution struct {
	ProductID       int64           `json:"product_id"`
	Variant         VariantRef      `json:"variant_id"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Package         string          `json:"package"`
	Manufacturer    string          `json:"manufacturer"`
	RetailPackage   string          `json:"retail_package"`
	UnitsPerPackage int             `json:"units_per_package"`
}

// VariantRef addresses either the base product or one of its variants.
// The zero value is the base product.
type VariantRef struct {
	id int64
}

// BaseVariant refers to the base product.
func BaseVariant() VariantRef { return VariantRef{} }

// VariantOf refers to the variant with the given id. id must be positive.
func VariantOf(id int64) VariantRef { return VariantRef{id: id} }

// ParseVariantID converts a wire id into a reference. 0 means the base product.
func ParseVariantID(id int64) (VariantRef, error) {
	if id < 0 {
		return VariantRef{}, fmt.Errorf("invalid variant id %d", id)
	}
	return VariantRef{id: id}, nil
}

// IsBase reports whether the reference is the base product.
func (v VariantRef) IsBase() bool { return v.id == 0 }

// ID returns the variant id and true, or 0 and false for the base product.
func (v VariantRef) ID() (int64, bool) {
	if v.id == 0 {
		return 0, false
	}
	return v.id, true
}

func (v VariantRef) String() string {
	if v.IsBase() {
		return "base"
	}
	return "variant:" + strconv.FormatInt(v.id, 10)
}

// MarshalJSON encodes the base product as null.
func (v VariantRef) MarshalJSON() ([]byte, error) {
	if v.IsBase() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(v.id, 10)), nil
}

// UnmarshalJSON accepts null, 0 (base product) or a positive variant id.
func (v *VariantRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = VariantRef{}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("variant_id: %w", err)
	}
	ref, err := ParseVariantID(id)
	if err != nil {
		return err
	}
	*v = ref
	return nil
}
