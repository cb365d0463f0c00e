// shared/battlenet/types.go
package battlenet

import "github.com/Ftotnem/isabot-go/shared/models"

// Ref is the common {id, name} reference object. With a locale query the
// name is a plain string.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RealmRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type FactionRef struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// AccountProfileResponse is /profile/user/wow.
type AccountProfileResponse struct {
	ID          int64        `json:"id"`
	WoWAccounts []WoWAccount `json:"wow_accounts"`
}

type WoWAccount struct {
	ID         int64              `json:"id"`
	Characters []ProfileCharacter `json:"characters"`
}

type ProfileCharacter struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Realm         RealmRef   `json:"realm"`
	PlayableClass Ref        `json:"playable_class"`
	PlayableRace  Ref        `json:"playable_race"`
	Faction       FactionRef `json:"faction"`
	Level         int        `json:"level"`
}

// Characters flattens every WoW account's characters. Characters without an id
// or realm cannot be matched against a roster and are dropped.
func (r AccountProfileResponse) Characters() []models.Character {
	var out []models.Character
	for _, acc := range r.WoWAccounts {
		for _, ch := range acc.Characters {
			if ch.ID == 0 || ch.Realm.Slug == "" {
				continue
			}
			out = append(out, models.Character{
				ID:        ch.ID,
				Name:      ch.Name,
				RealmSlug: ch.Realm.Slug,
				Class:     ch.PlayableClass.Name,
				Race:      ch.PlayableRace.Name,
				Faction:   ch.Faction.Name,
				Level:     ch.Level,
			})
		}
	}
	return out
}

// MountsCollectionResponse is /profile/user/wow/collections/mounts.
type MountsCollectionResponse struct {
	Mounts []CollectedMount `json:"mounts"`
}

type CollectedMount struct {
	Mount      Ref  `json:"mount"`
	IsUseable  bool `json:"is_useable"`
	IsFavorite bool `json:"is_favorite"`
}

// DistinctMountCount counts unique mount ids. Entries without an id are skipped.
func (r MountsCollectionResponse) DistinctMountCount() int {
	seen := make(map[int64]struct{}, len(r.Mounts))
	for _, m := range r.Mounts {
		if m.Mount.ID == 0 {
			continue
		}
		seen[m.Mount.ID] = struct{}{}
	}
	return len(seen)
}

// PvPSummaryResponse is /profile/wow/character/{realm}/{name}/pvp-summary.
type PvPSummaryResponse struct {
	HonorLevel       int               `json:"honor_level"`
	HonorableKills   int               `json:"honorable_kills"`
	PvPMapStatistics []PvPMapStatistic `json:"pvp_map_statistics"`
}

type PvPMapStatistic struct {
	WorldMap        Ref              `json:"world_map"`
	MatchStatistics *MatchStatistics `json:"match_statistics"`
}

type MatchStatistics struct {
	Played int `json:"played"`
	Won    int `json:"won"`
	Lost   int `json:"lost"`
}

// BattlegroundTotals sums won/lost over the map entries that carry match statistics.
func (r PvPSummaryResponse) BattlegroundTotals() (won, lost int) {
	for _, stat := range r.PvPMapStatistics {
		if stat.MatchStatistics == nil {
			continue
		}
		won += stat.MatchStatistics.Won
		lost += stat.MatchStatistics.Lost
	}
	return won, lost
}

// GuildRosterResponse is /data/wow/guild/{realm}/{guild}/roster.
type GuildRosterResponse struct {
	Guild   GuildRef      `json:"guild"`
	Members []GuildMember `json:"members"`
}

type GuildRef struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Realm RealmRef `json:"realm"`
}

type GuildMember struct {
	Character RosterCharacter `json:"character"`
	Rank      int             `json:"rank"`
}

type RosterCharacter struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Realm RealmRef `json:"realm"`
	Level int      `json:"level"`
}

// Membership converts the roster into a membership set. Members without a realm
// slug are attributed to fallbackRealm, the realm the roster was requested for.
func (r GuildRosterResponse) Membership(fallbackRealm string) models.RosterMembership {
	m := make(models.RosterMembership, len(r.Members))
	for _, member := range r.Members {
		if member.Character.ID == 0 {
			continue
		}
		realm := member.Character.Realm.Slug
		if realm == "" {
			realm = fallbackRealm
		}
		m.Add(realm, member.Character.ID)
	}
	return m
}
