// shared/redis/constants.go
package redis

import "fmt"

const (
	// CredentialKeyPrefix holds the current client-credentials token: credential:{clientID}
	CredentialKeyPrefix = "credential:{%s}"
	// RosterKeyPrefix holds the cached guild roster membership set: roster:{realm}:{guild}
	RosterKeyPrefix = "roster:{%s}:%s"
)

var ErrRedisKeyNotFound = fmt.Errorf("redis key not found")

func CredentialKey(clientID string) string {
	return fmt.Sprintf(CredentialKeyPrefix, clientID)
}

func RosterKey(realmSlug, guildSlug string) string {
	return fmt.Sprintf(RosterKeyPrefix, realmSlug, guildSlug)
}
