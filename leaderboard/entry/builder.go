// leaderboard/entry/builder.go
package entry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"go.uber.org/zap"
)

var ErrPersistenceFailure = fmt.Errorf("leaderboard entry persistence failed")

// Store writes immutable entries. Create assigns and returns the entry id.
type Store interface {
	Create(ctx context.Context, entry models.Entry) (string, error)
}

// Builder assembles leaderboard entries from account aggregates.
type Builder struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

func NewBuilder(store Store, logger *zap.Logger) *Builder {
	return &Builder{
		store:  store,
		now:    time.Now,
		logger: logger.Named("entry"),
	}
}

// Build creates an entry with one player, mount and battleground record per aggregate.
func (b *Builder) Build(aggregates map[string]models.AccountAggregate, accounts map[string]models.Account) models.Entry {
	e := models.Entry{
		Players:      make(map[string]models.PlayerInfo, len(aggregates)),
		DateCreated:  b.now().Unix(),
		Mounts:       make(map[string]models.MountStats, len(aggregates)),
		NormalBGWins: make(map[string]models.BattlegroundStats, len(aggregates)),
	}
	for accountID, agg := range aggregates {
		tag := DisplayBattleTag(accounts[accountID].BattleTag)
		if tag == "" {
			tag = accountID
		}
		e.Players[accountID] = models.PlayerInfo{BattleTag: tag, ID: accountID}
		e.Mounts[accountID] = models.MountStats{NumberOfMounts: agg.MountCount}
		e.NormalBGWins[accountID] = models.BattlegroundStats{
			BGTotalWon:  agg.BGTotalWon,
			BGTotalLost: agg.BGTotalLost,
		}
	}
	return e
}

// Persist writes the entry once. Calling it twice stores two snapshots.
func (b *Builder) Persist(ctx context.Context, e models.Entry) (string, error) {
	id, err := b.store.Create(ctx, e)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	b.logger.Info("leaderboard entry persisted",
		zap.String("entry_id", id),
		zap.Int("players", len(e.Players)),
		zap.Int64("date_created", e.DateCreated))
	return id, nil
}

// DisplayBattleTag drops the "#1234" discriminator.
func DisplayBattleTag(battleTag string) string {
	name, _, _ := strings.Cut(battleTag, "#")
	return name
}
