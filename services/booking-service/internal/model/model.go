package model

import "time"

// Status is the appointment lifecycle state. scheduled is the only initial
// state; completed, cancelled and no-show are terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// CanTransition reports whether moving from -> to is a legal state change.
// scheduled -> confirmed -> completed, scheduled -> cancelled,
// scheduled|confirmed -> no-show. Terminal states admit nothing.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusNoShow
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusNoShow
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Tier is a subscription tier. The ordering is total:
// self-guided < growth < premium.
type Tier string

const (
	TierSelfGuided Tier = "self-guided"
	TierGrowth     Tier = "growth"
	TierPremium    Tier = "premium"
)

var tierRank = map[Tier]int{
	TierSelfGuided: 0,
	TierGrowth:     1,
	TierPremium:    2,
}

// Rank returns the tier's position in the total order, or -1 for an
// unknown tier.
func (t Tier) Rank() int {
	r, ok := tierRank[t]
	if !ok {
		return -1
	}
	return r
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

type Appointment struct {
	ID               string
	OfferingID       string
	ClientID         string
	ProviderID       string
	StartTime        time.Time
	EndTime          time.Time
	TimeZone         string
	Status           Status
	Notes            string
	MeetingLink      string
	ReminderSent     bool
	FeedbackProvided bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Offering struct {
	ID              string
	ProviderID      string
	Title           string
	Description     string
	DurationMinutes int
	// PriceCents is nil for offerings without a published price.
	PriceCents        *int64
	Currency          string
	Category          string
	RequiredTier      *Tier
	MaxBookingsPerDay int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AvailabilityWindow is one weekly recurring bookable window for a provider.
// Start/end are minutes from local midnight in the window's timezone; the
// timezone string is carried verbatim.
type AvailabilityWindow struct {
	ID          string
	ProviderID  string
	Weekday     int // 0 = Sunday .. 6 = Saturday
	StartMinute int
	EndMinute   int
	TimeZone    string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscription is the locally cached entitlement snapshot for a client,
// maintained from billing events. The billing system is the source of truth.
type Subscription struct {
	ClientID  string
	Tier      Tier
	IsActive  bool
	UpdatedAt time.Time
}
