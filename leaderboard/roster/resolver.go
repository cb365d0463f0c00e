// leaderboard/roster/resolver.go
package roster

import "github.com/Ftotnem/isabot-go/shared/models"

// Resolver decides which characters count toward the leaderboard.
type Resolver struct {
	trackedRealms map[string]struct{}
}

func NewResolver(trackedRealms []string) *Resolver {
	realms := make(map[string]struct{}, len(trackedRealms))
	for _, r := range trackedRealms {
		realms[r] = struct{}{}
	}
	return &Resolver{trackedRealms: realms}
}

// ResolveInScope keeps characters on a tracked realm that are also on the roster.
// Accounts left without characters are omitted. The input is not modified.
func (r *Resolver) ResolveInScope(accountCharacters map[string][]models.Character, roster models.RosterMembership) map[string][]models.Character {
	inScope := make(map[string][]models.Character, len(accountCharacters))
	for accountID, characters := range accountCharacters {
		var kept []models.Character
		for _, ch := range characters {
			if _, tracked := r.trackedRealms[ch.RealmSlug]; !tracked {
				continue
			}
			if !roster.Contains(ch.RealmSlug, ch.ID) {
				continue
			}
			kept = append(kept, ch)
		}
		if len(kept) > 0 {
			inScope[accountID] = kept
		}
	}
	return inScope
}
