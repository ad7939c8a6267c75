package model

import "time"

const (
	DefaultShoppingDay   = time.Friday
	DefaultLeadTimeHours = 48
)

// Preferences are the scheduling-relevant user settings.
type Preferences struct {
	OwnerID       string
	ShoppingDay   time.Weekday
	LeadTimeHours int
	DietKey       string
	UpdatedAt     time.Time
}

func DefaultPreferences(ownerID string) *Preferences {
	return &Preferences{
		OwnerID:       ownerID,
		ShoppingDay:   DefaultShoppingDay,
		LeadTimeHours: DefaultLeadTimeHours,
	}
}

// Normalize replaces out-of-range values with defaults.
func (p *Preferences) Normalize() {
	if p.ShoppingDay < time.Sunday || p.ShoppingDay > time.Saturday {
		p.ShoppingDay = DefaultShoppingDay
	}
	switch p.LeadTimeHours {
	case 24, 48, 72:
	default:
		p.LeadTimeHours = DefaultLeadTimeHours
	}
}
