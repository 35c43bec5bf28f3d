package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store"
)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var a model.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, signal_address, signal_verified, badges, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.SignalAddress, &a.SignalVerified, pq.Array(&a.Badges), &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) ListEvaluable(ctx context.Context) ([]model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, signal_address, signal_verified, badges, created_at, updated_at
		FROM accounts
		WHERE signal_verified AND signal_address IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query evaluable accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.SignalAddress, &a.SignalVerified, pq.Array(&a.Badges), &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// TransitionBadges performs the compound badge update in one statement:
// strip every id in remove, append add when non-empty, and return the badge
// set before and after. The row lock inside the statement makes concurrent
// transitions on the same account serialize instead of losing updates.
func (r *AccountRepo) TransitionBadges(ctx context.Context, id string, remove []string, add string) (store.BadgeTransition, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	addArr := []string{}
	if add != "" {
		addArr = []string{add}
	}
	if remove == nil {
		remove = []string{}
	}

	var t store.BadgeTransition
	err := r.db.QueryRowContext(ctx, `
		WITH prev AS (
			SELECT id, badges FROM accounts WHERE id = $1 FOR UPDATE
		)
		UPDATE accounts a
		SET badges = COALESCE(
				(SELECT array_agg(b) FROM unnest(prev.badges) AS b WHERE b <> ALL($2::text[])),
				'{}'::text[]
			) || $3::text[],
			updated_at = now()
		FROM prev
		WHERE a.id = prev.id
		RETURNING prev.badges, a.badges
	`, id, pq.Array(remove), pq.Array(addArr)).Scan(pq.Array(&t.Previous), pq.Array(&t.Current))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.BadgeTransition{}, store.ErrNotFound
		}
		return store.BadgeTransition{}, fmt.Errorf("transition badges: %w", err)
	}
	return t, nil
}

func (r *AccountRepo) Upsert(ctx context.Context, acct *model.Account) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	badges := acct.Badges
	if badges == nil {
		badges = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, signal_address, signal_verified, badges)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			signal_address = EXCLUDED.signal_address,
			signal_verified = EXCLUDED.signal_verified,
			updated_at = now()
	`, acct.ID, acct.SignalAddress, acct.SignalVerified, pq.Array(badges))
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}
