package store

import (
	"context"
	"errors"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
)

// ErrNotFound is returned when the account does not exist. Distinct from
// "found, no change" so callers can skip missing accounts silently.
var ErrNotFound = errors.New("account not found")

// BadgeTransition reports the badge set before and after an atomic update.
type BadgeTransition struct {
	Previous []string
	Current  []string
}

// AccountRepository provides access to account badge state.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// ListEvaluable returns every account with a verified signal source.
	ListEvaluable(ctx context.Context) ([]model.Account, error)

	// TransitionBadges removes every id in remove from the badge set and
	// appends add (when non-empty) in one indivisible statement. The cron
	// cycle and an on-demand evaluation can race on the same account; a
	// read-then-write-back sequence loses updates under that race.
	TransitionBadges(ctx context.Context, id string, remove []string, add string) (BadgeTransition, error)

	Upsert(ctx context.Context, acct *model.Account) error
}
