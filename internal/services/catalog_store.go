package services

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"jetroc/internal/domain"
)

// ProductSource is the persistent side of the catalog.
type ProductSource interface {
	ListByCategory(ctx context.Context, cat domain.Category) ([]domain.Product, error)
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	Update(ctx context.Context, id string, in domain.ProductInput) error
	Delete(ctx context.Context, id string) error
}

// Listing is what a catalog view renders. Degraded means the store could not
// be read and Products holds the bundled fallback catalog.
type Listing struct {
	Products []domain.Product
	Degraded bool
}

// CatalogStore caches the full product list, newest first. Every successful
// mutation bumps the epoch, which invalidates the cache and keys the next
// refetch, so concurrent readers share one fetch per epoch.
type CatalogStore struct {
	src      ProductSource
	fallback []domain.Product
	log      *zap.Logger
	maxAge   time.Duration
	now      func() time.Time

	sf    singleflight.Group
	epoch atomic.Uint64

	mu        sync.RWMutex
	products  []domain.Product
	loaded    bool
	loadedAt  time.Time
	loadedFor uint64
}

// NewCatalogStore wires src. maxAge <= 0 keeps the cache until the next
// mutation.
func NewCatalogStore(src ProductSource, fallback []domain.Product, log *zap.Logger, maxAge time.Duration) *CatalogStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogStore{
		src:      src,
		fallback: slices.Clone(fallback),
		log:      log.Named("catalog"),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// WithClock swaps the time source used for cache expiry.
func (s *CatalogStore) WithClock(now func() time.Time) *CatalogStore {
	s.now = now
	return s
}

// Products returns the whole catalog. The only error is ctx's own, returned
// when the caller went away before the fetch finished; its result is dropped.
func (s *CatalogStore) Products(ctx context.Context) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	if ps, ok := s.snapshot(); ok {
		return Listing{Products: ps}, nil
	}
	ps, err := s.refetch(ctx)
	if err == nil {
		return Listing{Products: slices.Clone(ps)}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Listing{}, ctxErr
	}
	s.log.Warn("catalog fetch failed, serving fallback", zap.Error(err))
	return Listing{Products: slices.Clone(s.fallback), Degraded: true}, nil
}

// ListByCategory returns one category's products; the zero Category lists all.
func (s *CatalogStore) ListByCategory(ctx context.Context, cat domain.Category) (Listing, error) {
	l, err := s.Products(ctx)
	if err != nil || cat == "" {
		return l, err
	}
	l.Products = slices.DeleteFunc(l.Products, func(p domain.Product) bool { return p.Category != cat })
	return l, nil
}

func (s *CatalogStore) Get(ctx context.Context, id string) (domain.Product, error) {
	l, err := s.Products(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range l.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

// Refresh forces a refetch on the next read.
func (s *CatalogStore) Refresh(ctx context.Context) error {
	s.epoch.Add(1)
	_, err := s.refetch(ctx)
	return err
}

func (s *CatalogStore) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	p, err := s.src.Create(ctx, in)
	if err != nil {
		return domain.Product{}, &domain.StoreError{Op: "create product", Err: err}
	}
	s.afterWrite(ctx)
	return p, nil
}

func (s *CatalogStore) Update(ctx context.Context, id string, in domain.ProductInput) error {
	if err := s.src.Update(ctx, id, in); err != nil {
		return &domain.StoreError{Op: "update product", Err: err}
	}
	s.afterWrite(ctx)
	return nil
}

func (s *CatalogStore) Delete(ctx context.Context, id string) error {
	if err := s.src.Delete(ctx, id); err != nil {
		return &domain.StoreError{Op: "delete product", Err: err}
	}
	s.afterWrite(ctx)
	return nil
}

func (s *CatalogStore) afterWrite(ctx context.Context) {
	s.epoch.Add(1)
	if _, err := s.refetch(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("refetch after write failed", zap.Error(err))
	}
}

func (s *CatalogStore) snapshot() ([]domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || s.loadedFor != s.epoch.Load() {
		return nil, false
	}
	if s.maxAge > 0 && s.now().Sub(s.loadedAt) > s.maxAge {
		return nil, false
	}
	return slices.Clone(s.products), true
}

// refetch shares one store read per epoch between callers. The read itself is
// detached from ctx so one caller leaving does not fail the others; that
// caller just stops waiting.
func (s *CatalogStore) refetch(ctx context.Context) ([]domain.Product, error) {
	epoch := s.epoch.Load()
	ch := s.sf.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		ps, err := s.src.ListByCategory(context.WithoutCancel(ctx), "")
		if err != nil {
			return nil, err
		}
		s.install(epoch, ps)
		return ps, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, &domain.StoreError{Op: "list products", Err: res.Err}
		}
		ps, ok := res.Val.([]domain.Product)
		if !ok {
			return nil, errors.New("catalog: unexpected refetch result")
		}
		return ps, nil
	}
}

// install keeps ps only if no mutation happened while it was being read.
func (s *CatalogStore) install(epoch uint64, ps []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch.Load() {
		return
	}
	s.products = ps
	s.loaded = true
	s.loadedAt = s.now()
	s.loadedFor = epoch
}
