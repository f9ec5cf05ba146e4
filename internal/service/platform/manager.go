package platform

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
)

// Registry holds one adapter per platform.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Platform]Adapter
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		adapters: make(map[models.Platform]Adapter),
		logger:   logger,
	}
}

func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := adapter.Platform()
	if _, exists := r.adapters[p]; exists {
		return fmt.Errorf("adapter for platform %s already registered", p)
	}

	r.adapters[p] = adapter
	r.logger.Info("Platform adapter registered",
		zap.String("platform", string(p)),
		zap.Bool("enabled", adapter.Enabled()))
	return nil
}

// Get returns ErrUnsupportedPlatform for unknown platforms. A Disabled
// adapter is returned as is; callers decide what to do with it.
func (r *Registry) Get(p models.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[p]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return adapter, nil
}

type Info struct {
	Platform    models.Platform `json:"platform"`
	DisplayName string          `json:"display_name"`
	Enabled     bool            `json:"enabled"`
	Reason      string          `json:"reason,omitempty"`
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.adapters))
	for p, a := range r.adapters {
		info := Info{Platform: p, DisplayName: p.DisplayName(), Enabled: a.Enabled()}
		if d, ok := a.(*Disabled); ok {
			info.Reason = d.Reason()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Platform < infos[j].Platform })
	return infos
}
