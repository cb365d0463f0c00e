package models

import (
	"cmp"
	"slices"
)

// RosterKey identifies a character on the guild roster. Character ids are only
// unique within a realm, so membership is keyed by both.
type RosterKey struct {
	RealmSlug   string `json:"realm"`
	CharacterID int64  `json:"id"`
}

// RosterMembership is the set of characters on the guild roster at fetch time.
type RosterMembership map[RosterKey]struct{}

func NewRosterMembership(keys ...RosterKey) RosterMembership {
	m := make(RosterMembership, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func (m RosterMembership) Add(realmSlug string, characterID int64) {
	m[RosterKey{RealmSlug: realmSlug, CharacterID: characterID}] = struct{}{}
}

func (m RosterMembership) Contains(realmSlug string, characterID int64) bool {
	_, ok := m[RosterKey{RealmSlug: realmSlug, CharacterID: characterID}]
	return ok
}

// Keys returns the members ordered by realm, then character id.
func (m RosterMembership) Keys() []RosterKey {
	keys := make([]RosterKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b RosterKey) int {
		if c := cmp.Compare(a.RealmSlug, b.RealmSlug); c != 0 {
			return c
		}
		return cmp.Compare(a.CharacterID, b.CharacterID)
	})
	return keys
}
