package catalog

import "time"

// Category is a top-level storefront category. The authoritative row carries
// its sub-categories; the cached shape collapses them to a count.
type Category struct {
	ID               string        `json:"id" validate:"required"`
	Name             string        `json:"name" validate:"required"`
	Slug             string        `json:"slug" validate:"required"`
	ImageURL         string        `json:"imageUrl,omitempty"`
	SubCategories    []SubCategory `json:"-"`
	SubCategoryCount int           `json:"subCategoryCount" validate:"gte=0"`
	Active           bool          `json:"active"`
	CreatedAt        time.Time     `json:"createdAt"`
}

func (c Category) CacheID() string { return c.ID }

// collapseSubCategories replaces the related collection with its count
// before the row is cached. Safe to apply more than once.
func collapseSubCategories(c Category) Category {
	if c.SubCategories != nil {
		c.SubCategoryCount = len(c.SubCategories)
		c.SubCategories = nil
	}
	return c
}

type SubCategory struct {
	ID         string    `json:"id" validate:"required"`
	CategoryID string    `json:"categoryId" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	Slug       string    `json:"slug" validate:"required"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s SubCategory) CacheID() string { return s.ID }

type ProductType struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Slug      string    `json:"slug" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p ProductType) CacheID() string { return p.ID }

type Tag struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t Tag) CacheID() string { return t.ID }

// Plan is a brand subscription plan. Prices are minor currency units.
type Plan struct {
	ID           string    `json:"id" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	PriceMinor   int64     `json:"priceMinor" validate:"gte=0"`
	DurationDays int       `json:"durationDays" validate:"gt=0"`
	Features     []string  `json:"features,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (p Plan) CacheID() string { return p.ID }

// MarketingStrip is the rotating promo strip above the storefront header.
// Cached without expiry; content changes only through explicit invalidation.
type MarketingStrip struct {
	ID        string    `json:"id" validate:"required"`
	Text      string    `json:"text" validate:"required"`
	LinkURL   string    `json:"linkUrl,omitempty"`
	Position  int       `json:"position" validate:"gte=0"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m MarketingStrip) CacheID() string { return m.ID }

type Brand struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Slug      string    `json:"slug" validate:"required"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b Brand) CacheID() string { return b.ID }

type Banner struct {
	ID        string    `json:"id" validate:"required"`
	ImageURL  string    `json:"imageUrl" validate:"required"`
	TargetURL string    `json:"targetUrl,omitempty"`
	Position  int       `json:"position" validate:"gte=0"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b Banner) CacheID() string { return b.ID }

// CartLine is one line of a user's cart. Variant dimensions are part of the
// line's identity: the same product in two sizes is two lines. ColorHex is
// optional and extends the key only when present.
type CartLine struct {
	UserID     string    `json:"userId" validate:"required"`
	ProductID  string    `json:"productId" validate:"required"`
	Size       string    `json:"size" validate:"required"`
	ColorHex   string    `json:"colorHex,omitempty"`
	Quantity   int       `json:"quantity" validate:"gte=1"`
	PriceMinor int64     `json:"priceMinor" validate:"gte=0"`
	Selected   bool      `json:"selected"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (l CartLine) CacheUserID() string { return l.UserID }

func (l CartLine) CacheSegments() []string {
	if l.ColorHex == "" {
		return []string{l.ProductID, l.Size}
	}
	return []string{l.ProductID, l.Size, l.ColorHex}
}

// WishlistEntry marks one product on a user's wishlist.
type WishlistEntry struct {
	UserID    string    `json:"userId" validate:"required"`
	ProductID string    `json:"productId" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w WishlistEntry) CacheUserID() string { return w.UserID }

func (w WishlistEntry) CacheSegments() []string { return []string{w.ProductID} }
