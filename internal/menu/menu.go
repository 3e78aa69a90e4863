// Package menu keeps a paginated snapshot of the product catalog so the
// menu renders without hitting the backend on every tap.
package menu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// WrapPage normalizes a 1-based page number against the page count:
// page 0 wraps to the last page and total+1 wraps to the first.
// Out-of-range requests beyond one step clamp into the wrapped range too.
func WrapPage(page, total int) int {
	if total <= 0 {
		return 1
	}
	switch {
	case page < 1:
		return total
	case page > total:
		return 1
	default:
		return page
	}
}

// Paginate chunks products into pages of the given size.
func Paginate(products []commerce.Product, pageSize int) [][]commerce.Product {
	if pageSize <= 0 {
		pageSize = 8
	}
	var pages [][]commerce.Product
	for i := 0; i < len(products); i += pageSize {
		end := i + pageSize
		if end > len(products) {
			end = len(products)
		}
		pages = append(pages, products[i:end])
	}
	return pages
}

// Catalog exposes the slice of the commerce client the cache needs.
type Catalog interface {
	GetProducts(ctx context.Context) ([]commerce.Product, error)
}

// Cache is a thread-safe paginated menu snapshot with periodic rebuild.
type Cache struct {
	catalog  Catalog
	pageSize int

	mu        sync.RWMutex
	pages     [][]commerce.Product
	refreshed time.Time
}

// NewCache builds an empty cache; call Refresh before first use.
func NewCache(catalog Catalog, pageSize int) *Cache {
	return &Cache{catalog: catalog, pageSize: pageSize}
}

// Refresh rebuilds the snapshot from the backend.
func (c *Cache) Refresh(ctx context.Context) error {
	products, err := c.catalog.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("menu refresh: %w", err)
	}

	pages := Paginate(products, c.pageSize)
	c.mu.Lock()
	c.pages = pages
	c.refreshed = time.Now()
	c.mu.Unlock()

	logger.Debug(ctx, "menu", "cache.refreshed",
		slog.Int("pages", len(pages)),
		slog.Int("count", len(products)),
	)
	return nil
}

// Page returns the wrapped page number, its products, and the page count.
// When the cache is empty it refreshes once on demand.
func (c *Cache) Page(ctx context.Context, page int) (int, []commerce.Product, int, error) {
	c.mu.RLock()
	pages := c.pages
	c.mu.RUnlock()

	if len(pages) == 0 {
		if err := c.Refresh(ctx); err != nil {
			return 0, nil, 0, err
		}
		c.mu.RLock()
		pages = c.pages
		c.mu.RUnlock()
		if len(pages) == 0 {
			return 0, nil, 0, fmt.Errorf("menu: catalog is empty")
		}
	}

	wrapped := WrapPage(page, len(pages))
	return wrapped, pages[wrapped-1], len(pages), nil
}

// RunRefresher rebuilds the cache on the given interval until ctx is done.
func (c *Cache) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logger.Warn(ctx, "menu", "cache.refresh_failed",
					slog.String("err", err.Error()),
				)
			}
		}
	}
}
