package resolver

import (
	"context"
	"sync"

	"ledger-recon/internal/domain"
)

// Cache is a batch-scoped EntitySource. Each entity class is read once per
// tenant and document lists are fetched lazily per entity, so every
// transaction in a batch sees the same snapshot.
type Cache struct {
	source EntitySource

	mu       sync.Mutex
	entities map[string][]domain.Entity
	docs     map[string][]domain.OutstandingDocument
}

func NewCache(source EntitySource) *Cache {
	return &Cache{
		source:   source,
		entities: make(map[string][]domain.Entity),
		docs:     make(map[string][]domain.OutstandingDocument),
	}
}

func (c *Cache) ListActiveEntities(ctx context.Context, tenantID string, kind domain.EntityKind) ([]domain.Entity, error) {
	key := tenantID + "|" + string(kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entities[key]; ok {
		return cached, nil
	}
	entities, err := c.source.ListActiveEntities(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	c.entities[key] = entities
	return entities, nil
}

func (c *Cache) ListOutstandingDocuments(ctx context.Context, tenantID, entityID string) ([]domain.OutstandingDocument, error) {
	key := tenantID + "|" + entityID

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.docs[key]; ok {
		return cached, nil
	}
	docs, err := c.source.ListOutstandingDocuments(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	c.docs[key] = docs
	return docs, nil
}
