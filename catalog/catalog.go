// Package catalog binds the generic caches to the marketplace's concrete
// entity kinds: key namespaces, validation schemas, natural sort orders and
// normalizers for each hot entity the storefront reads.
//
// Each constructor returns a ready cache; callers inject the store and the
// kind's source-of-truth queries. Extra options append after the kind's
// defaults, so a caller can still override TTL or attach a logger.
package catalog

import (
	"time"

	"github.com/modacart/storecache/cache"
	"github.com/modacart/storecache/kv"
)

// Key namespaces, one per entity kind.
const (
	KindCategory       = "category"
	KindSubCategory    = "sub-category"
	KindProductType    = "product-type"
	KindTag            = "tag"
	KindPlan           = "plan"
	KindMarketingStrip = "marketing-strip"
	KindBrand          = "brand"
	KindBanner         = "banner"
	KindCart           = "cart"
	KindWishlist       = "wishlist"
)

// DefaultTTL is the expiry backstop for catalog entities.
const DefaultTTL = 7 * 24 * time.Hour

func newestFirst[T any](created func(T) time.Time) func(a, b T) bool {
	return func(a, b T) bool { return created(a).After(created(b)) }
}

// NewCategoryCache caches categories with their sub-category collections
// collapsed to counts.
func NewCategoryCache(store kv.Store, src cache.Source[Category], opts ...cache.Option[Category]) *cache.Cache[Category] {
	base := []cache.Option[Category]{
		cache.WithTTL[Category](DefaultTTL),
		cache.WithNormalize(collapseSubCategories),
		cache.WithSort(newestFirst(func(c Category) time.Time { return c.CreatedAt })),
	}
	return cache.New(store, src, KindCategory, append(base, opts...)...)
}

func NewSubCategoryCache(store kv.Store, src cache.Source[SubCategory], opts ...cache.Option[SubCategory]) *cache.Cache[SubCategory] {
	base := []cache.Option[SubCategory]{
		cache.WithTTL[SubCategory](DefaultTTL),
		cache.WithSort(newestFirst(func(s SubCategory) time.Time { return s.CreatedAt })),
	}
	return cache.New(store, src, KindSubCategory, append(base, opts...)...)
}

func NewProductTypeCache(store kv.Store, src cache.Source[ProductType], opts ...cache.Option[ProductType]) *cache.Cache[ProductType] {
	base := []cache.Option[ProductType]{
		cache.WithTTL[ProductType](DefaultTTL),
		cache.WithSort(newestFirst(func(p ProductType) time.Time { return p.CreatedAt })),
	}
	return cache.New(store, src, KindProductType, append(base, opts...)...)
}

func NewTagCache(store kv.Store, src cache.Source[Tag], opts ...cache.Option[Tag]) *cache.Cache[Tag] {
	base := []cache.Option[Tag]{
		cache.WithTTL[Tag](DefaultTTL),
		cache.WithSort(newestFirst(func(t Tag) time.Time { return t.CreatedAt })),
	}
	return cache.New(store, src, KindTag, append(base, opts...)...)
}

func NewPlanCache(store kv.Store, src cache.Source[Plan], opts ...cache.Option[Plan]) *cache.Cache[Plan] {
	base := []cache.Option[Plan]{
		cache.WithTTL[Plan](DefaultTTL),
		cache.WithSort(newestFirst(func(p Plan) time.Time { return p.CreatedAt })),
	}
	return cache.New(store, src, KindPlan, append(base, opts...)...)
}

// NewMarketingStripCache caches marketing strips without expiry; the strip
// changes only when an admin mutation explicitly invalidates it.
func NewMarketingStripCache(store kv.Store, src cache.Source[MarketingStrip], opts ...cache.Option[MarketingStrip]) *cache.Cache[MarketingStrip] {
	base := []cache.Option[MarketingStrip]{
		cache.WithTTL[MarketingStrip](0),
		cache.WithSort[MarketingStrip](func(a, b MarketingStrip) bool {
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.CreatedAt.After(b.CreatedAt)
		}),
	}
	return cache.New(store, src, KindMarketingStrip, append(base, opts...)...)
}

func NewBrandCache(store kv.Store, src cache.Source[Brand], opts ...cache.Option[Brand]) *cache.Cache[Brand] {
	base := []cache.Option[Brand]{
		cache.WithTTL[Brand](DefaultTTL),
		cache.WithSort(newestFirst(func(b Brand) time.Time { return b.CreatedAt })),
	}
	return cache.New(store, src, KindBrand, append(base, opts...)...)
}

func NewBannerCache(store kv.Store, src cache.Source[Banner], opts ...cache.Option[Banner]) *cache.Cache[Banner] {
	base := []cache.Option[Banner]{
		cache.WithTTL[Banner](DefaultTTL),
		cache.WithSort[Banner](func(a, b Banner) bool {
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.CreatedAt.After(b.CreatedAt)
		}),
	}
	return cache.New(store, src, KindBanner, append(base, opts...)...)
}

// NewCartCache caches cart lines per user, selected lines first.
func NewCartCache(store kv.Store, src cache.UserSource[CartLine], opts ...cache.Option[CartLine]) *cache.Partitioned[CartLine] {
	base := []cache.Option[CartLine]{
		cache.WithTTL[CartLine](DefaultTTL),
		cache.WithSort[CartLine](func(a, b CartLine) bool {
			if a.Selected != b.Selected {
				return a.Selected
			}
			return a.CreatedAt.After(b.CreatedAt)
		}),
	}
	return cache.NewPartitioned(store, src, KindCart, append(base, opts...)...)
}

// NewWishlistCache caches wishlist entries per user, newest first.
func NewWishlistCache(store kv.Store, src cache.UserSource[WishlistEntry], opts ...cache.Option[WishlistEntry]) *cache.Partitioned[WishlistEntry] {
	base := []cache.Option[WishlistEntry]{
		cache.WithTTL[WishlistEntry](DefaultTTL),
		cache.WithSort(newestFirst(func(w WishlistEntry) time.Time { return w.CreatedAt })),
	}
	return cache.NewPartitioned(store, src, KindWishlist, append(base, opts...)...)
}
