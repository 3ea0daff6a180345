package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
)

const (
	defaultRoleCacheSize = 16
	defaultRoleCacheTTL  = 5 * time.Minute
)

// RoleCache keeps recently read roles in memory, keyed both by id and by
// name. Every instance owns its own cache, so a description changed on
// another instance is seen here after at most one TTL.
type RoleCache struct {
	byID   *expirable.LRU[string, *domain.Role]
	byName *expirable.LRU[domain.RoleName, *domain.Role]
}

func NewRoleCache(size int, ttl time.Duration) *RoleCache {
	if size <= 0 {
		size = defaultRoleCacheSize
	}
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}
	return &RoleCache{
		byID:   expirable.NewLRU[string, *domain.Role](size, nil, ttl),
		byName: expirable.NewLRU[domain.RoleName, *domain.Role](size, nil, ttl),
	}
}

func (c *RoleCache) GetByID(id string) (*domain.Role, bool) {
	return observe(c.byID.Get(id))
}

func (c *RoleCache) GetByName(name domain.RoleName) (*domain.Role, bool) {
	return observe(c.byName.Get(name))
}

// Put stores a copy of role under both keys.
func (c *RoleCache) Put(role *domain.Role) {
	if role == nil {
		return
	}
	r := *role
	c.byID.Add(r.ID, &r)
	c.byName.Add(r.Name, &r)
}

// Invalidate drops role from both indexes.
func (c *RoleCache) Invalidate(role *domain.Role) {
	if role == nil {
		return
	}
	c.byID.Remove(role.ID)
	c.byName.Remove(role.Name)
}

func observe(r *domain.Role, ok bool) (*domain.Role, bool) {
	if !ok {
		metrics.RoleCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.RoleCacheHitsTotal.Inc()
	cp := *r
	return &cp, true
}
