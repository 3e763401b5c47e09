package service

import (
	"context"
	"fmt"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// ProductLister fetches the full sellable catalog
type ProductLister interface {
	ListProducts(ctx context.Context, token string) ([]models.CatalogItem, error)
}

// CatalogCache holds the local view of sellable items and their provisional
// availability. Quantities reserved by a cart are subtracted here until the
// next Load replaces the snapshot.
type CatalogCache struct {
	lister ProductLister
	items  map[int64]*models.CatalogItem
	order  []int64
	ready  bool
	logger *zap.Logger
}

// NewCatalogCache creates an empty, not yet loaded catalog cache
func NewCatalogCache(lister ProductLister) *CatalogCache {
	return &CatalogCache{
		lister: lister,
		items:  make(map[int64]*models.CatalogItem),
		logger: util.GetLogger(),
	}
}

// Load replaces the snapshot with the backend's current catalog. On failure
// the previous snapshot is kept for releases but the cache stops accepting
// reservations.
func (c *CatalogCache) Load(ctx context.Context, token string) error {
	ctx, span := util.StartSpan(ctx, "CatalogCache.Load")
	defer span.End()

	products, err := c.lister.ListProducts(ctx, token)
	if err != nil {
		c.ready = false
		util.CatalogLoadsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Catalog load failed", zap.Error(err))
		if isAuthError(err) {
			return err
		}
		return apperrors.CatalogLoad(err)
	}

	items := make(map[int64]*models.CatalogItem, len(products))
	order := make([]int64, 0, len(products))
	for i := range products {
		p := products[i]
		if _, dup := items[p.ID]; dup {
			c.logger.Warn("Duplicate product in catalog listing", zap.Int64("item_id", p.ID))
			continue
		}
		if p.AvailableQuantity < 0 {
			p.AvailableQuantity = 0
		}
		items[p.ID] = &p
		order = append(order, p.ID)
	}

	c.items = items
	c.order = order
	c.ready = true
	util.CatalogLoadsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("Catalog loaded", zap.Int("count", len(order)))
	return nil
}

// Ready reports whether the last Load succeeded
func (c *CatalogCache) Ready() bool {
	return c.ready
}

// Reserve decreases the available quantity of an item by delta
func (c *CatalogCache) Reserve(itemID int64, delta int) error {
	if delta <= 0 {
		return apperrors.Validation(fmt.Sprintf("reservation delta must be positive, got %d", delta))
	}
	if !c.ready {
		return apperrors.CatalogNotReady()
	}

	item, ok := c.items[itemID]
	if !ok {
		return apperrors.NotFound("item", itemID)
	}
	if item.AvailableQuantity-delta < 0 {
		return apperrors.InsufficientStock(itemID, delta, item.AvailableQuantity)
	}

	item.AvailableQuantity -= delta
	return nil
}

// Release returns delta units of a previously reserved item to availability
func (c *CatalogCache) Release(itemID int64, delta int) {
	if delta <= 0 {
		return
	}
	item, ok := c.items[itemID]
	if !ok {
		c.logger.Warn("Release for unknown item", zap.Int64("item_id", itemID), zap.Int("delta", delta))
		return
	}
	item.AvailableQuantity += delta
}

// Item returns a copy of the cached item
func (c *CatalogCache) Item(itemID int64) (models.CatalogItem, bool) {
	item, ok := c.items[itemID]
	if !ok {
		return models.CatalogItem{}, false
	}
	return *item, true
}

// Items returns copies of all cached items in listing order
func (c *CatalogCache) Items() []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}
