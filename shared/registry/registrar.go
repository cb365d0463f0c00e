// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ServiceRegistrar handles the self-registration and heartbeating of a service instance.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	logger      *zap.Logger
	stopChan    chan struct{}
	doneChan    chan struct{}
}

func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType string, cfg *config.CommonConfig, logger *zap.Logger) *ServiceRegistrar {
	serviceID := fmt.Sprintf("%s-%s", serviceType, uuid.New().String())

	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   serviceID,
		logger:      logger.Named("registrar").With(zap.String("service_id", serviceID)),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start registers immediately and keeps heartbeating in the background.
func (sr *ServiceRegistrar) Start() {
	sr.logger.Info("starting service registrar",
		zap.String("service_type", sr.serviceType),
		zap.String("ip", sr.cfg.ServiceIP),
		zap.Int("port", sr.cfg.ServicePort))

	sr.registerService()
	go sr.run()
}

// Stop halts heartbeating and removes this instance from the registry.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sr.redisClient.HDel(ctx, registryKey(sr.serviceType), sr.serviceID).Err(); err != nil {
		sr.logger.Error("failed to deregister on shutdown", zap.Error(err))
		return
	}
	sr.logger.Info("service deregistered")
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	for {
		select {
		case <-ticker.C:
			sr.registerService()
		case <-cleanup:
			sr.performCleanup()
		case <-sr.stopChan:
			return
		}
	}
}

func (sr *ServiceRegistrar) registerService() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	info := ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    time.Now().UnixMilli(),
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		sr.logger.Error("failed to marshal service info", zap.Error(err))
		return
	}

	if err := sr.redisClient.HSet(ctx, registryKey(sr.serviceType), sr.serviceID, infoJSON).Err(); err != nil {
		sr.logger.Error("heartbeat failed", zap.Error(err))
		return
	}
	sr.logger.Debug("heartbeat sent")
}

// performCleanup removes entries that stopped heartbeating or cannot be decoded.
func (sr *ServiceRegistrar) performCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := registryKey(sr.serviceType)
	results, err := sr.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		sr.logger.Error("registry cleanup failed to list services", zap.Error(err))
		return
	}

	now := time.Now()
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		stale := json.Unmarshal([]byte(infoJSON), &info) != nil ||
			now.Sub(time.UnixMilli(info.LastSeen)) > sr.cfg.HeartbeatTTL
		if !stale {
			continue
		}
		if err := sr.redisClient.HDel(ctx, key, instanceID).Err(); err != nil {
			sr.logger.Error("failed to remove stale registry entry", zap.String("instance_id", instanceID), zap.Error(err))
			continue
		}
		sr.logger.Info("removed stale registry entry", zap.String("instance_id", instanceID))
	}
}

func (sr *ServiceRegistrar) GetServiceID() string {
	return sr.serviceID
}

func (sr *ServiceRegistrar) GetServiceType() string {
	return sr.serviceType
}
