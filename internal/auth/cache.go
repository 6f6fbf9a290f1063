package auth

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

const (
	DefaultCacheTTL  = 30 * time.Second
	DefaultCacheSize = 1024
)

// PermissionReader is the read side of PermissionStore used by the cache loader.
type PermissionReader interface {
	GetModule(ctx context.Context, key string) (Module, error)
	GetPermission(ctx context.Context, role Role, moduleKey string) (Permission, error)
}

// PermissionCache is a per-process, time-bounded read-through cache of staff actions per module.
// Staleness is bounded by the TTL; Invalidate only shortens it.
type PermissionCache struct {
	store PermissionReader
	lru   *expirable.LRU[string, ActionSet]
	group singleflight.Group
	// gen advances on every invalidation so loads started earlier cannot repopulate the cache.
	gen atomic.Uint64
	ttl time.Duration
}

// NewPermissionCache builds a cache over store. Non-positive ttl or size fall back to defaults.
func NewPermissionCache(store PermissionReader, ttl time.Duration, size int) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &PermissionCache{
		store: store,
		lru:   expirable.NewLRU[string, ActionSet](size, nil, ttl),
		ttl:   ttl,
	}
}

// TTL returns the configured entry lifetime.
func (c *PermissionCache) TTL() time.Duration { return c.ttl }

// StaffActions returns the cached staff actions for moduleKey, loading them on a miss.
func (c *PermissionCache) StaffActions(ctx context.Context, moduleKey string) (ActionSet, error) {
	moduleKey = strings.TrimSpace(strings.ToLower(moduleKey))
	if actions, ok := c.lru.Get(moduleKey); ok {
		obs.PermissionCacheHits.Inc()
		return slices.Clone(actions), nil
	}
	obs.PermissionCacheMisses.Inc()

	gen := c.gen.Load()
	flightKey := moduleKey + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		actions, err := loadStaffActions(context.WithoutCancel(ctx), c.store, moduleKey)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.lru.Add(moduleKey, actions)
		}
		return actions, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.(ActionSet)), nil
}

// Invalidate drops moduleKey from the cache, or everything when moduleKey is empty.
func (c *PermissionCache) Invalidate(moduleKey string) {
	c.gen.Add(1)
	moduleKey = strings.TrimSpace(strings.ToLower(moduleKey))
	if moduleKey == "" {
		c.lru.Purge()
		return
	}
	c.lru.Remove(moduleKey)
}

// loadStaffActions resolves the staff grant for a module, restricted to the module's
// currently declared actions. Read is always included for an active module. Missing or
// inactive modules yield an empty set.
func loadStaffActions(ctx context.Context, store PermissionReader, moduleKey string) (ActionSet, error) {
	mod, err := store.GetModule(ctx, moduleKey)
	if errors.Is(err, ErrNotFound) {
		return ActionSet{}, nil
	}
	if err != nil {
		return nil, storageErr("load module", err)
	}
	if !mod.IsActive {
		return ActionSet{}, nil
	}
	perm, err := store.GetPermission(ctx, RoleStaff, moduleKey)
	if errors.Is(err, ErrNotFound) {
		return staffGrant(mod.Actions, nil), nil
	}
	if err != nil {
		return nil, storageErr("load permission", err)
	}
	return staffGrant(mod.Actions, perm.Actions), nil
}
