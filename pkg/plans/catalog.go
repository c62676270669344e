package plans

import (
	"fmt"
)

// PlanType identifies a plan generation. Retired generations keep their own
// type so existing subscribers stay resolvable after the plan is pulled from
// sale.
type PlanType string

const (
	PlanFree        PlanType = "free"
	PlanTeams       PlanType = "teams"
	PlanTeamsLegacy PlanType = "teams-legacy"
	PlanBusiness    PlanType = "business"
)

// Plan describes a purchasable tier: its seat and subvault entitlements and
// the remote billing prices a subscription for it is built from.
type Plan struct {
	Type PlanType `yaml:"type"`
	Name string   `yaml:"name"`

	// BaseSeats is the included seat count; nil means unlimited seats.
	BaseSeats *int `yaml:"base_seats"`

	// CanBuyAdditionalSeats allows purchasing seats beyond the base count.
	CanBuyAdditionalSeats bool `yaml:"can_buy_additional_seats"`

	// MaxAdditionalSeats caps purchased extra seats; nil means no cap.
	MaxAdditionalSeats *int `yaml:"max_additional_seats"`

	// MaxSubvaults caps the organization's subvaults; nil means unlimited.
	MaxSubvaults *int `yaml:"max_subvaults"`

	// BillingPlanID is the remote price for the base subscription line.
	// Empty for plans that never touch the billing provider.
	BillingPlanID string `yaml:"billing_plan_id"`

	// SeatPlanID is the remote price for the per-seat subscription line.
	SeatPlanID string `yaml:"seat_plan_id"`

	// UpgradeSortOrder ranks plans; upgrades must strictly increase it.
	UpgradeSortOrder int `yaml:"upgrade_sort_order"`

	// Disabled plans are not purchasable but stay resolvable for existing
	// subscribers.
	Disabled bool `yaml:"disabled"`

	TrialDays int `yaml:"trial_days"`
}

// IsFree reports whether this is the free tier
func (p *Plan) IsFree() bool {
	return p.Type == PlanFree
}

// IsPaid reports whether subscriptions for this plan exist remotely
func (p *Plan) IsPaid() bool {
	return p.BillingPlanID != ""
}

// SeatCeiling computes the seat ceiling for a purchased extra-seat count.
// Returns nil when the plan has unlimited seats. Extra seats only count when
// the plan sells them.
func (p *Plan) SeatCeiling(extraSeats int) *int {
	if p.BaseSeats == nil {
		return nil
	}
	ceiling := *p.BaseSeats
	if p.CanBuyAdditionalSeats {
		ceiling += extraSeats
	}
	return &ceiling
}

// Catalog is an immutable set of plans. Load one at startup; lookups are safe
// for concurrent use.
type Catalog struct {
	plans []Plan
}

// NewCatalog builds a catalog from a plan list, validating it first
func NewCatalog(planList []Plan) (*Catalog, error) {
	if len(planList) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one plan")
	}

	seen := make(map[PlanType]bool)
	for i := range planList {
		p := &planList[i]
		if p.Type == "" {
			return nil, fmt.Errorf("plan %d: type is required", i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("plan %q: name is required", p.Type)
		}
		if seen[p.Type] {
			return nil, fmt.Errorf("plan %q: duplicate type", p.Type)
		}
		seen[p.Type] = true

		if !p.Disabled && !p.IsFree() && p.BillingPlanID == "" {
			return nil, fmt.Errorf("plan %q: billing plan id is required for purchasable paid plans", p.Type)
		}
		if p.CanBuyAdditionalSeats && p.SeatPlanID == "" {
			return nil, fmt.Errorf("plan %q: seat plan id is required when additional seats can be bought", p.Type)
		}
		if p.BaseSeats != nil && *p.BaseSeats < 1 {
			return nil, fmt.Errorf("plan %q: base seats must be at least 1", p.Type)
		}
		if p.MaxAdditionalSeats != nil && *p.MaxAdditionalSeats < 0 {
			return nil, fmt.Errorf("plan %q: max additional seats cannot be negative", p.Type)
		}
		if p.MaxSubvaults != nil && *p.MaxSubvaults < 0 {
			return nil, fmt.Errorf("plan %q: max subvaults cannot be negative", p.Type)
		}
		if p.TrialDays < 0 {
			return nil, fmt.Errorf("plan %q: trial days cannot be negative", p.Type)
		}
	}

	copied := make([]Plan, len(planList))
	copy(copied, planList)
	return &Catalog{plans: copied}, nil
}

// Find returns the plan of the given type, including disabled ones. Use this
// when servicing an organization already on the plan. Returns nil when the
// type is unknown.
func (c *Catalog) Find(t PlanType) *Plan {
	for i := range c.plans {
		if c.plans[i].Type == t {
			plan := c.plans[i]
			return &plan
		}
	}
	return nil
}

// FindPurchasable returns the plan of the given type only if it is still for
// sale. Sign-up and upgrade paths use this. Returns nil for unknown or
// disabled types.
func (c *Catalog) FindPurchasable(t PlanType) *Plan {
	for i := range c.plans {
		if c.plans[i].Type == t && !c.plans[i].Disabled {
			plan := c.plans[i]
			return &plan
		}
	}
	return nil
}

// All returns a copy of every plan in catalog order
func (c *Catalog) All() []Plan {
	copied := make([]Plan, len(c.plans))
	copy(copied, c.plans)
	return copied
}

func intPtr(v int) *int {
	return &v
}

// Default returns the built-in plan catalog
func Default() *Catalog {
	catalog, err := NewCatalog([]Plan{
		{
			Type:             PlanFree,
			Name:             "Free",
			BaseSeats:        intPtr(2),
			MaxSubvaults:     intPtr(2),
			UpgradeSortOrder: 0,
		},
		{
			Type:                  PlanTeamsLegacy,
			Name:                  "Teams (2019)",
			BaseSeats:             intPtr(5),
			CanBuyAdditionalSeats: true,
			MaxAdditionalSeats:    intPtr(5),
			MaxSubvaults:          intPtr(10),
			BillingPlanID:         "plan-teams-2019-monthly",
			SeatPlanID:            "plan-teams-2019-seat-monthly",
			UpgradeSortOrder:      1,
			Disabled:              true,
		},
		{
			Type:                  PlanTeams,
			Name:                  "Teams",
			BaseSeats:             intPtr(5),
			CanBuyAdditionalSeats: true,
			MaxAdditionalSeats:    intPtr(10),
			MaxSubvaults:          intPtr(20),
			BillingPlanID:         "plan-teams-monthly",
			SeatPlanID:            "plan-teams-seat-monthly",
			UpgradeSortOrder:      2,
			TrialDays:             7,
		},
		{
			Type:                  PlanBusiness,
			Name:                  "Business",
			BaseSeats:             intPtr(10),
			CanBuyAdditionalSeats: true,
			MaxAdditionalSeats:    intPtr(90),
			BillingPlanID:         "plan-business-monthly",
			SeatPlanID:            "plan-business-seat-monthly",
			UpgradeSortOrder:      3,
			TrialDays:             7,
		},
	})
	if err != nil {
		// The built-in catalog is fixed at compile time; failing to build it
		// is a programming error.
		panic(fmt.Sprintf("invalid built-in plan catalog: %v", err))
	}
	return catalog
}
