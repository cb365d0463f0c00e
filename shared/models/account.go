// shared/models/account.go
package models

import "time"

// Character is a World of Warcraft character resolved from an account's profile summary.
type Character struct {
	ID        int64  `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	RealmSlug string `bson:"realm_slug" json:"realm_slug"`
	Class     string `bson:"class,omitempty" json:"class,omitempty"`
	Race      string `bson:"race,omitempty" json:"race,omitempty"`
	Faction   string `bson:"faction,omitempty" json:"faction,omitempty"`
	Level     int    `bson:"level" json:"level"`
}

// Account is a registered Battle.net account tracked by the leaderboard.
// The ID is the Battle.net "sub" claim. Accounts are written by the login flow;
// the leaderboard only reads them and refreshes the character list.
type Account struct {
	ID                   string      `bson:"_id" json:"id"`
	BattleTag            string      `bson:"battletag" json:"battletag"`
	AccessToken          string      `bson:"access_token,omitempty" json:"-"`
	AccessTokenExpiresAt *time.Time  `bson:"access_token_expires_at,omitempty" json:"-"`
	Characters           []Character `bson:"characters,omitempty" json:"characters,omitempty"`
	CharactersUpdatedAt  *time.Time  `bson:"characters_updated_at,omitempty" json:"characters_updated_at,omitempty"`
	CreatedAt            *time.Time  `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

// HasUsableToken reports whether the account's user token can be presented at now.
// A token without a recorded expiry is assumed usable.
func (a Account) HasUsableToken(now time.Time) bool {
	if a.AccessToken == "" {
		return false
	}
	return a.AccessTokenExpiresAt == nil || a.AccessTokenExpiresAt.After(now)
}

// AccountAggregate is the folded result of one account's statistics for a single run.
type AccountAggregate struct {
	AccountID   string `json:"account_id"`
	MountCount  int    `json:"mount_count"`
	BGTotalWon  int    `json:"bg_total_won"`
	BGTotalLost int    `json:"bg_total_lost"`
}
