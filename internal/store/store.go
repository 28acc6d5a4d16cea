// internal/store/store.go

// Package store persists wishlists, their items, and the bookkeeping queues
// behind the maintenance jobs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a wishlist or item does not exist.
var ErrNotFound = errors.New("not found")

// Wishlist is a named collection of items owned by one user. ItemCount and
// TotalValue are denormalized aggregates maintained incrementally on writes;
// RecomputeAggregates rebuilds them from the items when they drift.
type Wishlist struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	ItemCount   int
	TotalValue  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is one wish on a wishlist, carrying the enriched product fields.
type Item struct {
	ID           string
	WishlistID   string
	OwnerID      string
	URL          string
	CanonicalURL string
	Title        string
	Price        float64
	Currency     string
	Image        string

	// ImagePublicID identifies the item's image in external media storage,
	// used by the cleanup job when the item goes away.
	ImagePublicID string

	Description  string
	Category     string
	Rating       string
	Availability string
	Purchased    bool

	// EventDate, when set, drives purchase reminders.
	EventDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageCleanup is one queued deletion of an orphaned stored image.
type ImageCleanup struct {
	ID         string
	PublicID   string
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
}

// Store is the persistence interface. All methods are safe for concurrent
// use.
type Store interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	CreateWishlist(ctx context.Context, list *Wishlist) error
	GetWishlist(ctx context.Context, id string) (*Wishlist, error)
	ListWishlists(ctx context.Context, ownerID string) ([]*Wishlist, error)
	DeleteWishlist(ctx context.Context, id string) error

	// AddItem inserts the item and bumps the owning wishlist's aggregates in
	// the same transaction.
	AddItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, wishlistID string) ([]*Item, error)
	SetItemPurchased(ctx context.Context, id string, purchased bool) error

	// DeleteItem removes the item, adjusts aggregates, and queues the item's
	// image for cleanup when it has one.
	DeleteItem(ctx context.Context, id string) error

	// RecomputeAggregates rebuilds a wishlist's item count and total value
	// from its items.
	RecomputeAggregates(ctx context.Context, wishlistID string) error

	// DeleteAccount removes every wishlist and item owned by the user and
	// queues all their stored images for cleanup. It returns the number of
	// items removed.
	DeleteAccount(ctx context.Context, ownerID string) (int, error)

	EnqueueImageCleanup(ctx context.Context, publicID string) error

	// DueImageCleanups returns up to limit queue entries that have not
	// exhausted maxAttempts.
	DueImageCleanups(ctx context.Context, limit, maxAttempts int) ([]*ImageCleanup, error)

	// ResolveImageCleanup removes the entry on success or records the
	// failure, incrementing its attempt counter.
	ResolveImageCleanup(ctx context.Context, id string, cleanupErr error) error

	// ItemsDueForReminder returns unpurchased items whose event date falls
	// within the window starting now.
	ItemsDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]*Item, error)

	Close() error
}
