package confidence

import (
	"fmt"
	"sort"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
)

// Penalty names one scoring rule
type Penalty string

const (
	PenaltyInvoiceNumber Penalty = "invoice_number"
	PenaltyTotal         Penalty = "total"
	PenaltyInvoiceDate   Penalty = "invoice_date"
	PenaltyPONumber      Penalty = "po_number"
	PenaltyLineItems     Penalty = "line_items"
	PenaltyValidation    Penalty = "validation"
)

// Built-in profile names
const (
	ProfileDefault = "default"
	ProfileService = "service"
)

// Rule is a penalty and the predicate that triggers it
type Rule struct {
	Penalty Penalty
	Weight  decimal.Decimal
	Applies func(r *models.Record) bool
}

// DefaultWeights returns the standard penalty weights
func DefaultWeights() map[Penalty]float64 {
	return map[Penalty]float64{
		PenaltyInvoiceNumber: 0.3,
		PenaltyTotal:         0.3,
		PenaltyInvoiceDate:   0.2,
		PenaltyPONumber:      0.1,
		PenaltyLineItems:     0.2,
		PenaltyValidation:    0.1,
	}
}

var predicates = map[Penalty]func(r *models.Record) bool{
	PenaltyInvoiceNumber: func(r *models.Record) bool { return !r.HasInvoiceNumber() },
	PenaltyTotal:         func(r *models.Record) bool { return !r.Total.Valid },
	PenaltyInvoiceDate:   func(r *models.Record) bool { return r.InvoiceDate == nil },
	PenaltyPONumber:      func(r *models.Record) bool { return !r.HasPONumber() },
	PenaltyLineItems:     func(r *models.Record) bool { return len(r.LineItems) == 0 },
	PenaltyValidation:    func(r *models.Record) bool { return len(Validate(r)) > 0 },
}

// Profile is the set of penalty rules applied to a vendor category
type Profile struct {
	Name  string
	Rules []Rule
}

// Penalties lists the active penalty names in a stable order
func (p Profile) Penalties() []Penalty {
	out := make([]Penalty, 0, len(p.Rules))
	for _, rule := range p.Rules {
		out = append(out, rule.Penalty)
	}
	return out
}

// Has reports whether the profile applies the named penalty
func (p Profile) Has(penalty Penalty) bool {
	for _, rule := range p.Rules {
		if rule.Penalty == penalty {
			return true
		}
	}
	return false
}

// ProfileTable selects a profile by vendor
type ProfileTable struct {
	profiles   map[string]Profile
	assignment map[models.Vendor]string
}

// TableConfig is the data form of a ProfileTable
type TableConfig struct {
	Weights        map[Penalty]float64
	Profiles       map[string][]Penalty
	VendorProfiles map[models.Vendor]string
}

// DefaultTableConfig returns the built-in profiles: every penalty by default,
// and a service profile without line item and PO penalties for staffing invoices.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Weights: DefaultWeights(),
		Profiles: map[string][]Penalty{
			ProfileDefault: {
				PenaltyInvoiceNumber, PenaltyTotal, PenaltyInvoiceDate,
				PenaltyPONumber, PenaltyLineItems, PenaltyValidation,
			},
			ProfileService: {
				PenaltyInvoiceNumber, PenaltyTotal, PenaltyInvoiceDate, PenaltyValidation,
			},
		},
		VendorProfiles: map[models.Vendor]string{
			models.VendorAmandaAndrews: ProfileService,
		},
	}
}

// NewProfileTable builds a table from its data form
func NewProfileTable(cfg TableConfig) (*ProfileTable, error) {
	weights := DefaultWeights()
	for penalty, w := range cfg.Weights {
		if _, ok := predicates[penalty]; !ok {
			return nil, fmt.Errorf("unknown penalty %q", penalty)
		}
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("penalty %q weight must be between 0.0 and 1.0, got %.2f", penalty, w)
		}
		weights[penalty] = w
	}

	table := &ProfileTable{
		profiles:   make(map[string]Profile),
		assignment: make(map[models.Vendor]string),
	}

	for name, penalties := range cfg.Profiles {
		profile := Profile{Name: name}
		seen := make(map[Penalty]bool)
		for _, penalty := range penalties {
			pred, ok := predicates[penalty]
			if !ok {
				return nil, fmt.Errorf("profile %q: unknown penalty %q", name, penalty)
			}
			if seen[penalty] {
				continue
			}
			seen[penalty] = true
			profile.Rules = append(profile.Rules, Rule{
				Penalty: penalty,
				Weight:  decimal.NewFromFloat(weights[penalty]),
				Applies: pred,
			})
		}
		sort.SliceStable(profile.Rules, func(i, j int) bool {
			return profile.Rules[i].Penalty < profile.Rules[j].Penalty
		})
		table.profiles[name] = profile
	}

	if _, ok := table.profiles[ProfileDefault]; !ok {
		return nil, fmt.Errorf("profile %q is required", ProfileDefault)
	}

	for vendor, name := range cfg.VendorProfiles {
		if _, ok := table.profiles[name]; !ok {
			return nil, fmt.Errorf("vendor %q assigned to unknown profile %q", vendor, name)
		}
		table.assignment[vendor] = name
	}

	return table, nil
}

// DefaultProfileTable returns the built-in table
func DefaultProfileTable() *ProfileTable {
	table, err := NewProfileTable(DefaultTableConfig())
	if err != nil {
		panic(err)
	}
	return table
}

// ForVendor returns the profile assigned to vendor, or the default profile
func (t *ProfileTable) ForVendor(vendor models.Vendor) Profile {
	if name, ok := t.assignment[vendor]; ok {
		return t.profiles[name]
	}
	return t.profiles[ProfileDefault]
}

// Profile returns a profile by name
func (t *ProfileTable) Profile(name string) (Profile, bool) {
	p, ok := t.profiles[name]
	return p, ok
}
