// leaderboard/stats/aggregator.go
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ftotnem/isabot-go/shared/battlenet"
	"github.com/Ftotnem/isabot-go/shared/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	ErrAggregationUnavailable   = fmt.Errorf("leaderboard aggregation unavailable")
	ErrCharacterStatUnavailable = fmt.Errorf("character statistics unavailable")
)

// GameData is the subset of the game-data API the aggregator reads.
type GameData interface {
	PvPSummary(ctx context.Context, token, realmSlug, characterName string) (*battlenet.PvPSummaryResponse, error)
	AccountMounts(ctx context.Context, userToken string) (*battlenet.MountsCollectionResponse, error)
}

// CharacterResult is one character's battleground contribution. A failed fetch
// carries Err and contributes nothing.
type CharacterResult struct {
	Character models.Character
	Won       int
	Lost      int
	Err       error
}

// Aggregator fetches statistics for in-scope characters and folds them per account.
// All outbound calls share one concurrency limit.
type Aggregator struct {
	api    GameData
	sem    *semaphore.Weighted
	now    func() time.Time
	logger *zap.Logger
}

func NewAggregator(api GameData, maxConcurrency int, logger *zap.Logger) *Aggregator {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Aggregator{
		api:    api,
		sem:    semaphore.NewWeighted(int64(maxConcurrency)),
		now:    time.Now,
		logger: logger.Named("stats"),
	}
}

// Aggregate returns one AccountAggregate per account in inScope. Battleground
// statistics use the client credential; the mount collection uses each account's
// own token from accounts. Individual fetch failures count as zero.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	inScope map[string][]models.Character,
	accounts map[string]models.Account,
	cred models.Credential,
) (map[string]models.AccountAggregate, error) {
	if len(inScope) == 0 {
		return nil, fmt.Errorf("%w: no in-scope characters", ErrAggregationUnavailable)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]models.AccountAggregate, len(inScope))
		wg      sync.WaitGroup
	)
	for accountID, characters := range inScope {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg := a.aggregateAccount(ctx, accountID, characters, accounts[accountID], cred)
			mu.Lock()
			results[accountID] = agg
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAggregationUnavailable, err)
	}
	return results, nil
}

func (a *Aggregator) aggregateAccount(
	ctx context.Context,
	accountID string,
	characters []models.Character,
	account models.Account,
	cred models.Credential,
) models.AccountAggregate {
	var (
		mounts  int
		results []CharacterResult
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		mounts = a.mountCount(ctx, accountID, account)
	}()
	go func() {
		defer wg.Done()
		results = a.characterStats(ctx, characters, cred)
	}()
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn("character skipped",
				zap.String("account_id", accountID),
				zap.Int64("character_id", r.Character.ID),
				zap.String("character", r.Character.Name),
				zap.String("realm", r.Character.RealmSlug),
				zap.Error(r.Err))
		}
	}
	return Fold(accountID, mounts, results)
}

// characterStats fetches every character's pvp summary concurrently.
func (a *Aggregator) characterStats(ctx context.Context, characters []models.Character, cred models.Credential) []CharacterResult {
	results := make([]CharacterResult, len(characters))
	var wg sync.WaitGroup
	for i, ch := range characters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.characterResult(ctx, ch, cred)
		}()
	}
	wg.Wait()
	return results
}

func (a *Aggregator) characterResult(ctx context.Context, ch models.Character, cred models.Credential) CharacterResult {
	res := CharacterResult{Character: ch}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrCharacterStatUnavailable, err)
		return res
	}
	summary, err := a.api.PvPSummary(ctx, cred.AccessToken, ch.RealmSlug, ch.Name)
	a.sem.Release(1)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrCharacterStatUnavailable, err)
		return res
	}
	res.Won, res.Lost = summary.BattlegroundTotals()
	return res
}

// mountCount reads the account-wide mount collection once.
func (a *Aggregator) mountCount(ctx context.Context, accountID string, account models.Account) int {
	if !account.HasUsableToken(a.now()) {
		a.logger.Warn("no usable account token, counting zero mounts", zap.String("account_id", accountID))
		return 0
	}
	collection, err := a.fetchMounts(ctx, account.AccessToken)
	if err != nil {
		a.logger.Warn("mount collection skipped",
			zap.String("account_id", accountID),
			zap.Error(fmt.Errorf("%w: %w", ErrCharacterStatUnavailable, err)))
		return 0
	}
	return collection.DistinctMountCount()
}

func (a *Aggregator) fetchMounts(ctx context.Context, userToken string) (*battlenet.MountsCollectionResponse, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.sem.Release(1)
	return a.api.AccountMounts(ctx, userToken)
}

// Fold sums character results into an account aggregate. Failed results
// contribute zero. The sum does not depend on result order.
func Fold(accountID string, mountCount int, results []CharacterResult) models.AccountAggregate {
	agg := models.AccountAggregate{AccountID: accountID, MountCount: mountCount}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		agg.BGTotalWon += r.Won
		agg.BGTotalLost += r.Lost
	}
	return agg
}
