package usage

import (
	"time"

	"github.com/google/uuid"
)

// GenerationType distinguishes metered generation kinds.
type GenerationType string

const (
	GenerationImage GenerationType = "image"
	GenerationVideo GenerationType = "video"
)

// IdentityKind tells whether counters belong to a user or an anonymous session.
type IdentityKind string

const (
	IdentityUser    IdentityKind = "user"
	IdentitySession IdentityKind = "session"
)

// Identity is the counter owner: a permanent user or a pre-signup session.
type Identity struct {
	Kind IdentityKind
	ID   uuid.UUID
}

func UserIdentity(id uuid.UUID) Identity {
	return Identity{Kind: IdentityUser, ID: id}
}

func SessionIdentity(id uuid.UUID) Identity {
	return Identity{Kind: IdentitySession, ID: id}
}

// DayKey truncates a timestamp to the UTC calendar day counters are keyed by.
func DayKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's UTC calendar month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
