// leaderboard/store/errors.go
package store

import "fmt"

var (
	ErrEntryNotFound   = fmt.Errorf("leaderboard entry not found")
	ErrAccountNotFound = fmt.Errorf("account not found")
)

// DefaultListLimit caps List calls that pass a non-positive limit.
const DefaultListLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
