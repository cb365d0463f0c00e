// shared/cluster/assignment_manager.go
package cluster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Ftotnem/isabot-go/shared/registry"
	"github.com/stathat/consistent"
	"go.uber.org/zap"
)

// MemberSource lists the live replicas of a service type.
type MemberSource interface {
	GetActiveServices(ctx context.Context, serviceType string) (map[string]registry.ServiceInfo, error)
}

// ServiceAssignmentManager decides which replica owns a task key by consistent
// hashing over the replicas currently present in the registry.
type ServiceAssignmentManager struct {
	members        MemberSource
	serviceID      string
	serviceType    string
	updateInterval time.Duration
	logger         *zap.Logger

	chMux          sync.RWMutex
	consistentHash *consistent.Consistent

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServiceAssignmentManager(
	members MemberSource,
	serviceID, serviceType string,
	updateInterval time.Duration,
	logger *zap.Logger,
) *ServiceAssignmentManager {
	ctx, cancel := context.WithCancel(context.Background())

	ring := consistent.New()
	// Until the first refresh the only known member is this replica.
	ring.Add(serviceID)

	return &ServiceAssignmentManager{
		members:        members,
		serviceID:      serviceID,
		serviceType:    serviceType,
		updateInterval: updateInterval,
		logger:         logger.Named("assignment").With(zap.String("service_id", serviceID)),
		consistentHash: ring,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start refreshes the ring every update interval until Stop. Run it in a goroutine.
func (sam *ServiceAssignmentManager) Start() {
	ticker := time.NewTicker(sam.updateInterval)
	defer ticker.Stop()

	sam.Refresh(sam.ctx)
	for {
		select {
		case <-sam.ctx.Done():
			return
		case <-ticker.C:
			sam.Refresh(sam.ctx)
		}
	}
}

func (sam *ServiceAssignmentManager) Stop() {
	sam.cancel()
}

// Refresh rebuilds the ring when the set of live replicas changed.
func (sam *ServiceAssignmentManager) Refresh(ctx context.Context) {
	active, err := sam.members.GetActiveServices(ctx, sam.serviceType)
	if err != nil {
		sam.logger.Error("failed to list active replicas", zap.Error(err))
		return
	}

	members := make([]string, 0, len(active))
	for id := range active {
		members = append(members, id)
	}
	slices.Sort(members)

	sam.chMux.Lock()
	defer sam.chMux.Unlock()

	current := sam.consistentHash.Members()
	slices.Sort(current)
	if slices.Equal(members, current) {
		return
	}

	ring := consistent.New()
	ring.Set(members)
	sam.consistentHash = ring
	sam.logger.Info("assignment ring updated", zap.Strings("members", members))
}

// IsResponsible reports whether this replica owns taskKey.
func (sam *ServiceAssignmentManager) IsResponsible(taskKey string) (bool, error) {
	sam.chMux.RLock()
	defer sam.chMux.RUnlock()

	if len(sam.consistentHash.Members()) == 0 {
		return false, fmt.Errorf("consistent hash ring is empty for service type %s", sam.serviceType)
	}

	owner, err := sam.consistentHash.Get(taskKey)
	if err != nil {
		return false, fmt.Errorf("failed to resolve owner of %q: %w", taskKey, err)
	}
	return owner == sam.serviceID, nil
}
