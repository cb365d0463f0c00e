// shared/models/entry.go
package models

import "fmt"

// PlayerInfo is the display information stored for each account in an Entry.
type PlayerInfo struct {
	BattleTag string `bson:"battletag" json:"battletag"`
	ID        string `bson:"id" json:"id"`
}

type MountStats struct {
	NumberOfMounts int `bson:"number_of_mounts" json:"number_of_mounts"`
}

type BattlegroundStats struct {
	BGTotalWon  int `bson:"bg_total_won" json:"bg_total_won"`
	BGTotalLost int `bson:"bg_total_lost" json:"bg_total_lost"`
}

// Entry is one immutable leaderboard snapshot. All maps are keyed by account id.
type Entry struct {
	ID           string                       `bson:"_id,omitempty" json:"id,omitempty"`
	Players      map[string]PlayerInfo        `bson:"players" json:"players"`
	DateCreated  int64                        `bson:"date_created" json:"date_created"` // epoch seconds
	Mounts       map[string]MountStats        `bson:"mounts" json:"mounts"`
	NormalBGWins map[string]BattlegroundStats `bson:"normal_bg_wins" json:"normal_bg_wins"`
}

// Metric selects which part of an Entry is ranked.
type Metric string

const (
	MetricMounts       Metric = "mounts"
	MetricNormalBGWins Metric = "normal_bg_wins"
)

var ErrUnknownMetric = fmt.Errorf("unknown leaderboard metric")

// Metrics lists every tracked metric in publishing order.
func Metrics() []Metric {
	return []Metric{MetricMounts, MetricNormalBGWins}
}

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricMounts, MetricNormalBGWins:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}
