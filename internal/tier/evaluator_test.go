package tier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store/mocks"
)

type fakeSignals struct {
	values map[string]float64 // keyed by asset id
	err    error
}

func (f *fakeSignals) GetValue(_ context.Context, _, assetID string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.values[assetID], nil
}

type fakeRoles struct {
	calls int
	err   error
}

func (f *fakeRoles) SyncTier(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

func verifiedAccount(id string) model.Account {
	addr := "SIGNALADDR" + id
	return model.Account{ID: id, SignalAddress: &addr, SignalVerified: true}
}

func hodlOnly() model.TierTable {
	table := model.DefaultTierTable()
	hodl, _ := table.Category(model.CategoryHodl)
	return model.TierTable{Categories: []model.CategorySpec{hodl}}
}

func TestEvaluateSkipsUnverified(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)

	e := NewEvaluator(repo, &fakeSignals{}, nil, hodlOnly(), nil)
	res, err := e.Evaluate(context.Background(), model.Account{ID: "42"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "unverified_signal_source", res.SkipReason)
}

func TestEvaluateAwardsTier(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := hodlOnly()
	hodl := table.Categories[0]

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", hodl.TierIDs(), "shrimp").
		Return(store.BadgeTransition{Previous: []string{}, Current: []string{"shrimp"}}, nil)

	roles := &fakeRoles{}
	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 100}}, roles, table, nil)

	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.Equal(t, []string{"shrimp"}, res.Awarded)
	assert.Empty(t, res.Removed)
	assert.Equal(t, "shrimp", res.Current[model.CategoryHodl])
	assert.True(t, res.RoleSynced)
	assert.Equal(t, 1, roles.calls)
}

func TestEvaluateUpgradeReplacesLowerTier(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := hodlOnly()
	hodl := table.Categories[0]

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", hodl.TierIDs(), "fish").
		Return(store.BadgeTransition{Previous: []string{"shrimp"}, Current: []string{"fish"}}, nil)

	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 10_000}}, nil, table, nil)
	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fish"}, res.Awarded)
	assert.Equal(t, []string{"shrimp"}, res.Removed)
}

func TestEvaluateDowngradeBelowLowestClearsBadge(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := hodlOnly()
	hodl := table.Categories[0]

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", hodl.TierIDs(), "").
		Return(store.BadgeTransition{Previous: []string{"fish"}, Current: []string{}}, nil)

	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 50}}, nil, table, nil)
	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.Empty(t, res.Awarded)
	assert.Equal(t, []string{"fish"}, res.Removed)
	assert.NotContains(t, res.Current, model.CategoryHodl)
}

func TestEvaluateAlreadyAtDesiredTierIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := hodlOnly()
	hodl := table.Categories[0]

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", hodl.TierIDs(), "shrimp").
		Return(store.BadgeTransition{Previous: []string{"shrimp"}, Current: []string{"shrimp"}}, nil)

	roles := &fakeRoles{}
	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 150}}, roles, table, nil)

	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.Empty(t, res.Awarded)
	assert.Empty(t, res.Removed)
	assert.Zero(t, roles.calls, "no change means no role sync")
}

func TestEvaluateBothCategories(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := model.DefaultTierTable()
	hodl, _ := table.Category(model.CategoryHodl)
	lp, _ := table.Category(model.CategoryLP)

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", hodl.TierIDs(), "crab").
		Return(store.BadgeTransition{Previous: []string{}, Current: []string{"crab"}}, nil)
	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", lp.TierIDs(), "lp-silver").
		Return(store.BadgeTransition{Previous: []string{"crab", "lp-bronze"}, Current: []string{"crab", "lp-silver"}}, nil)

	signals := &fakeSignals{values: map[string]float64{"hfc": 2_500, "hfc-lp": 1_200}}
	e := NewEvaluator(repo, signals, nil, table, nil)

	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.Equal(t, []string{"crab", "lp-silver"}, res.Awarded)
	assert.Equal(t, []string{"lp-bronze"}, res.Removed)
	assert.Equal(t, "crab", res.Current[model.CategoryHodl])
	assert.Equal(t, "lp-silver", res.Current[model.CategoryLP])
}

func TestEvaluateFetchFailureLeavesBadgesUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	// No TransitionBadges expectation: a failed fetch must not write.

	e := NewEvaluator(repo, &fakeSignals{err: errors.New("upstream down")}, nil, hodlOnly(), nil)
	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.True(t, res.FetchFailed)
	assert.Empty(t, res.Awarded)
	assert.Empty(t, res.Removed)
}

func TestEvaluateContextCancellationPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEvaluator(repo, &fakeSignals{err: context.Canceled}, nil, hodlOnly(), nil)
	_, err := e.Evaluate(ctx, verifiedAccount("42"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateAccountDeletedMidCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", gomock.Any(), gomock.Any()).
		Return(store.BadgeTransition{}, store.ErrNotFound)

	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 100}}, nil, hodlOnly(), nil)
	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "account_not_found", res.SkipReason)
}

func TestEvaluateStoreErrorPropagatesForRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", gomock.Any(), gomock.Any()).
		Return(store.BadgeTransition{}, errors.New("deadlock detected"))

	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 100}}, nil, hodlOnly(), nil)
	_, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transition badges")
}

func TestEvaluateRoleSyncFailureIsNonFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	table := hodlOnly()

	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", gomock.Any(), "shrimp").
		Return(store.BadgeTransition{Previous: []string{}, Current: []string{"shrimp"}}, nil)

	roles := &fakeRoles{err: errors.New("bot api down")}
	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 100}}, roles, table, nil)

	res, err := e.Evaluate(context.Background(), verifiedAccount("42"))
	require.NoError(t, err, "badge update must not roll back on role sync failure")
	assert.Equal(t, []string{"shrimp"}, res.Awarded)
	assert.False(t, res.RoleSynced)
}

func TestEvaluateByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	acct := verifiedAccount("42")

	repo.EXPECT().FindByID(gomock.Any(), "42").Return(&acct, nil)
	repo.EXPECT().
		TransitionBadges(gomock.Any(), "42", gomock.Any(), "shrimp").
		Return(store.BadgeTransition{Previous: []string{}, Current: []string{"shrimp"}}, nil)

	e := NewEvaluator(repo, &fakeSignals{values: map[string]float64{"hfc": 100}}, nil, hodlOnly(), nil)
	res, err := e.EvaluateByID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"shrimp"}, res.Awarded)
}

func TestEvaluateByIDUnknownAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().FindByID(gomock.Any(), "missing").Return(nil, store.ErrNotFound)

	e := NewEvaluator(repo, &fakeSignals{}, nil, hodlOnly(), nil)
	res, err := e.EvaluateByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "account_not_found", res.SkipReason)
}
