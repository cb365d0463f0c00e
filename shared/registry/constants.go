// shared/registry/constants.go
package registry

// RedisRegistryHashPrefix prefixes the hash holding one field per live replica:
// "services:<serviceType>", e.g. "services:leaderboard-service".
const RedisRegistryHashPrefix = "services:"

func registryKey(serviceType string) string {
	return RedisRegistryHashPrefix + serviceType
}
