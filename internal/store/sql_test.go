// internal/store/sql_test.go
package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("NewSQLStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return s
}

func addTestItem(t *testing.T, s *SQLStore, wishlistID, ownerID string, price float64, publicID string) *Item {
	t.Helper()
	item := &Item{
		WishlistID:    wishlistID,
		OwnerID:       ownerID,
		URL:           "https://amazon.pt/dp/B0",
		Title:         "Widget",
		Price:         price,
		Currency:      "EUR",
		ImagePublicID: publicID,
	}
	if err := s.AddItem(context.Background(), item); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	return item
}

func TestSQLStore_WishlistLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "alice", Name: "Birthday", Description: "hints"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	if list.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetWishlist(ctx, list.ID)
	if err != nil {
		t.Fatalf("GetWishlist failed: %v", err)
	}
	if got.Name != "Birthday" || got.OwnerID != "alice" {
		t.Errorf("got %+v", got)
	}

	lists, err := s.ListWishlists(ctx, "alice")
	if err != nil {
		t.Fatalf("ListWishlists failed: %v", err)
	}
	if len(lists) != 1 {
		t.Errorf("len(lists) = %d, want 1", len(lists))
	}

	if err := s.DeleteWishlist(ctx, list.ID); err != nil {
		t.Fatalf("DeleteWishlist failed: %v", err)
	}
	if _, err := s.GetWishlist(ctx, list.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_AggregatesTrackItems(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "bob", Name: "Tech"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}

	addTestItem(t, s, list.ID, "bob", 10.50, "")
	second := addTestItem(t, s, list.ID, "bob", 4.50, "")

	got, _ := s.GetWishlist(ctx, list.ID)
	if got.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", got.ItemCount)
	}
	if got.TotalValue != 15.00 {
		t.Errorf("TotalValue = %v, want 15", got.TotalValue)
	}

	if err := s.DeleteItem(ctx, second.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	got, _ = s.GetWishlist(ctx, list.ID)
	if got.ItemCount != 1 || got.TotalValue != 10.50 {
		t.Errorf("after delete: count=%d total=%v", got.ItemCount, got.TotalValue)
	}
}

func TestSQLStore_RecomputeAggregates(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "bob", Name: "Tech"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	addTestItem(t, s, list.ID, "bob", 25, "")

	// Drift the counters, then rebuild from the items.
	if _, err := s.db.ExecContext(ctx, s.bind(`UPDATE wishlists SET item_count = 99, total_value = 999 WHERE id = ?`), list.ID); err != nil {
		t.Fatalf("drift setup failed: %v", err)
	}
	if err := s.RecomputeAggregates(ctx, list.ID); err != nil {
		t.Fatalf("RecomputeAggregates failed: %v", err)
	}

	got, _ := s.GetWishlist(ctx, list.ID)
	if got.ItemCount != 1 || got.TotalValue != 25 {
		t.Errorf("count=%d total=%v, want 1/25", got.ItemCount, got.TotalValue)
	}
}

func TestSQLStore_DeleteItemQueuesImageCleanup(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "carol", Name: "Home"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	item := addTestItem(t, s, list.ID, "carol", 5, "img-123")

	if err := s.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	entries, err := s.DueImageCleanups(ctx, 10, 5)
	if err != nil {
		t.Fatalf("DueImageCleanups failed: %v", err)
	}
	if len(entries) != 1 || entries[0].PublicID != "img-123" {
		t.Fatalf("entries = %+v, want one for img-123", entries)
	}
}

func TestSQLStore_DeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "dave", Name: "Everything"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	addTestItem(t, s, list.ID, "dave", 1, "img-a")
	addTestItem(t, s, list.ID, "dave", 2, "img-b")
	addTestItem(t, s, list.ID, "dave", 3, "")

	// Another user's data must survive.
	other := &Wishlist{OwnerID: "erin", Name: "Mine"}
	if err := s.CreateWishlist(ctx, other); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	addTestItem(t, s, other.ID, "erin", 9, "img-erin")

	removed, err := s.DeleteAccount(ctx, "dave")
	if err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	if lists, _ := s.ListWishlists(ctx, "dave"); len(lists) != 0 {
		t.Errorf("dave still has %d wishlists", len(lists))
	}
	if lists, _ := s.ListWishlists(ctx, "erin"); len(lists) != 1 {
		t.Errorf("erin lost her wishlist")
	}

	entries, _ := s.DueImageCleanups(ctx, 10, 5)
	if len(entries) != 2 {
		t.Errorf("cleanup queue has %d entries, want 2 (dave's images only)", len(entries))
	}
}

func TestSQLStore_ImageCleanupQueueAttempts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.EnqueueImageCleanup(ctx, "stubborn-img"); err != nil {
		t.Fatalf("EnqueueImageCleanup failed: %v", err)
	}

	const maxAttempts = 5
	for i := 0; i < maxAttempts; i++ {
		entries, err := s.DueImageCleanups(ctx, 10, maxAttempts)
		if err != nil {
			t.Fatalf("DueImageCleanups failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("attempt %d: %d entries, want 1", i, len(entries))
		}
		if err := s.ResolveImageCleanup(ctx, entries[0].ID, fmt.Errorf("storage down")); err != nil {
			t.Fatalf("ResolveImageCleanup failed: %v", err)
		}
	}

	// Exhausted entries stop being selected.
	entries, err := s.DueImageCleanups(ctx, 10, maxAttempts)
	if err != nil {
		t.Fatalf("DueImageCleanups failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("retired entry still selected: %+v", entries)
	}
}

func TestSQLStore_ResolveSuccessDequeues(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.EnqueueImageCleanup(ctx, "img-ok"); err != nil {
		t.Fatalf("EnqueueImageCleanup failed: %v", err)
	}
	entries, _ := s.DueImageCleanups(ctx, 10, 5)
	if err := s.ResolveImageCleanup(ctx, entries[0].ID, nil); err != nil {
		t.Fatalf("ResolveImageCleanup failed: %v", err)
	}
	entries, _ = s.DueImageCleanups(ctx, 10, 5)
	if len(entries) != 0 {
		t.Errorf("resolved entry still queued")
	}
}

func TestSQLStore_ItemsDueForReminder(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "frank", Name: "Events"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}

	now := time.Now().UTC()
	soon := now.Add(24 * time.Hour)
	far := now.Add(30 * 24 * time.Hour)

	due := &Item{WishlistID: list.ID, OwnerID: "frank", URL: "https://fnac.pt/a", EventDate: &soon}
	notYet := &Item{WishlistID: list.ID, OwnerID: "frank", URL: "https://fnac.pt/b", EventDate: &far}
	bought := &Item{WishlistID: list.ID, OwnerID: "frank", URL: "https://fnac.pt/c", EventDate: &soon, Purchased: true}
	for _, item := range []*Item{due, notYet, bought} {
		if err := s.AddItem(ctx, item); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
	}

	items, err := s.ItemsDueForReminder(ctx, now, 48*time.Hour)
	if err != nil {
		t.Fatalf("ItemsDueForReminder failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != due.ID {
		t.Errorf("items = %+v, want only the unpurchased near-term one", items)
	}
}

func TestSQLStore_SetItemPurchased(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	list := &Wishlist{OwnerID: "gina", Name: "Stuff"}
	if err := s.CreateWishlist(ctx, list); err != nil {
		t.Fatalf("CreateWishlist failed: %v", err)
	}
	item := addTestItem(t, s, list.ID, "gina", 7, "")

	if err := s.SetItemPurchased(ctx, item.ID, true); err != nil {
		t.Fatalf("SetItemPurchased failed: %v", err)
	}
	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !got.Purchased {
		t.Error("item not marked purchased")
	}

	if err := s.SetItemPurchased(ctx, "no-such-id", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
