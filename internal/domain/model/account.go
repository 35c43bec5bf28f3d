package model

import "time"

// Account is a community member evaluated for tier badges. The engine only
// reads and writes the identity key, the signal source address, the verified
// flag, and the badge set; everything else about the member is owned by the
// community platform.
type Account struct {
	ID             string
	SignalAddress  *string
	SignalVerified bool
	Badges         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Evaluable reports whether the account has a verified signal source and can
// therefore be scored. Unverified accounts are skipped, never failed.
func (a *Account) Evaluable() bool {
	return a.SignalVerified && a.SignalAddress != nil && *a.SignalAddress != ""
}

// HasBadge reports whether the badge set currently contains tierID.
func (a *Account) HasBadge(tierID string) bool {
	for _, b := range a.Badges {
		if b == tierID {
			return true
		}
	}
	return false
}
