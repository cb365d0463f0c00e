// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RegistryClient reads the registry written by ServiceRegistrar.
type RegistryClient struct {
	redisClient    redis.UniversalClient
	serviceTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewRegistryClient(redisClient redis.UniversalClient, serviceTimeout time.Duration, logger *zap.Logger) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
		logger:         logger.Named("registry"),
		now:            time.Now,
	}
}

// GetActiveServices returns the replicas of serviceType whose last heartbeat is
// within the service timeout, keyed by instance id.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	results, err := rc.redisClient.HGetAll(ctx, registryKey(serviceType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}

	active := make(map[string]ServiceInfo)
	now := rc.now()
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			rc.logger.Warn("skipping malformed registry entry",
				zap.String("instance_id", instanceID),
				zap.String("service_type", serviceType),
				zap.Error(err))
			continue
		}
		if now.Sub(time.UnixMilli(info.LastSeen)) <= rc.serviceTimeout {
			active[instanceID] = info
		}
	}
	return active, nil
}
