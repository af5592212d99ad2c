package deal

import "strings"

// PropertyType classifies the asset.
type PropertyType string

const (
	SingleFamily PropertyType = "single_family"
	MultiFamily  PropertyType = "multi_family"
	Condo        PropertyType = "condo"
	Townhouse    PropertyType = "townhouse"
	Commercial   PropertyType = "commercial"
	MixedUse     PropertyType = "mixed_use"
)

// ParsePropertyType normalises a property type name; ok is false for
// unknown names.
func ParsePropertyType(s string) (PropertyType, bool) {
	switch p := PropertyType(strings.ToLower(strings.TrimSpace(s))); p {
	case SingleFamily, MultiFamily, Condo, Townhouse, Commercial, MixedUse:
		return p, true
	}
	return "", false
}

// Property describes the physical asset and its acquisition cost.
type Property struct {
	Address       string       `json:"address"`
	Type          PropertyType `json:"property_type"`
	PurchasePrice float64      `json:"purchase_price"`
	ClosingCosts  float64      `json:"closing_costs"`
	RehabBudget   float64      `json:"rehab_budget"`
	Units         int          `json:"num_units"`
	Bedrooms      int          `json:"bedrooms"`
	Bathrooms     float64      `json:"bathrooms"`
	SquareFootage int          `json:"square_footage,omitempty"`
	YearBuilt     int          `json:"year_built,omitempty"`
}

// Price bounds accepted for a purchase.
const (
	MinPurchasePrice = 10_000
	MaxPurchasePrice = 100_000_000
)

func (p Property) validate(v *ValidationError) {
	if strings.TrimSpace(p.Address) == "" {
		v.Add("property address is required")
	}
	if _, ok := ParsePropertyType(string(p.Type)); !ok {
		v.Add("unknown property type %q", p.Type)
	}
	checkRange(v, "purchase price", p.PurchasePrice, MinPurchasePrice, MaxPurchasePrice)
	if p.ClosingCosts < 0 || p.ClosingCosts > p.PurchasePrice*0.1 {
		v.Add("closing costs %.2f must be between 0 and 10%% of the purchase price", p.ClosingCosts)
	}
	if p.RehabBudget < 0 {
		v.Add("rehab budget cannot be negative")
	}
	if p.Units < 1 {
		v.Add("property must have at least one unit")
	}
	if p.Bedrooms < 0 || p.Bathrooms < 0 || p.SquareFootage < 0 {
		v.Add("room counts and square footage cannot be negative")
	}
	if p.YearBuilt != 0 && (p.YearBuilt <= 1800 || p.YearBuilt > 2100) {
		v.Add("year built %d outside (1800, 2100]", p.YearBuilt)
	}
}

// AcquisitionCost is price plus closing costs plus rehab.
func (p Property) AcquisitionCost() float64 {
	return p.PurchasePrice + p.ClosingCosts + p.RehabBudget
}

// CostPerUnit spreads the acquisition cost over the units.
func (p Property) CostPerUnit() float64 {
	if p.Units <= 0 {
		return 0
	}
	return p.AcquisitionCost() / float64(p.Units)
}

// CostPerSqft is zero when the square footage is unknown.
func (p Property) CostPerSqft() float64 {
	if p.SquareFootage <= 0 {
		return 0
	}
	return p.AcquisitionCost() / float64(p.SquareFootage)
}
