// internal/store/sql.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Table types are chosen to parse identically under sqlite and postgres so
// one schema serves both drivers.
const schema = `
CREATE TABLE IF NOT EXISTS wishlists (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	item_count  INTEGER NOT NULL DEFAULT 0,
	total_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wishlists_owner ON wishlists(owner_id);

CREATE TABLE IF NOT EXISTS items (
	id              TEXT PRIMARY KEY,
	wishlist_id     TEXT NOT NULL,
	owner_id        TEXT NOT NULL,
	url             TEXT NOT NULL,
	canonical_url   TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	price           DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency        TEXT NOT NULL DEFAULT 'EUR',
	image           TEXT NOT NULL DEFAULT '',
	image_public_id TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	rating          TEXT NOT NULL DEFAULT '',
	availability    TEXT NOT NULL DEFAULT '',
	purchased       BOOLEAN NOT NULL DEFAULT FALSE,
	event_date      TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_wishlist ON items(wishlist_id);
CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_event ON items(event_date);

CREATE TABLE IF NOT EXISTS image_cleanup_queue (
	id          TEXT PRIMARY KEY,
	public_id   TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	enqueued_at TIMESTAMP NOT NULL
);
`

// SQLStore implements Store on database/sql with the sqlite3 or postgres
// driver. Queries are written with ? placeholders and rebound for postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens the database. driver must be "sqlite3" or "postgres".
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// sqlite serializes writers; more connections just contend.
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// bind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateWishlist(ctx context.Context, list *Wishlist) error {
	if list.ID == "" {
		list.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	list.CreatedAt = now
	list.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO wishlists (id, owner_id, name, description, item_count, total_value, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, ?)`),
		list.ID, list.OwnerID, list.Name, list.Description, list.CreatedAt, list.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wishlist: %w", err)
	}
	return nil
}

func (s *SQLStore) GetWishlist(ctx context.Context, id string) (*Wishlist, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT id, owner_id, name, description, item_count, total_value, created_at, updated_at
		FROM wishlists WHERE id = ?`), id)
	return scanWishlist(row)
}

func (s *SQLStore) ListWishlists(ctx context.Context, ownerID string) ([]*Wishlist, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT id, owner_id, name, description, item_count, total_value, created_at, updated_at
		FROM wishlists WHERE owner_id = ? ORDER BY created_at`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlists: %w", err)
	}
	defer rows.Close()

	var lists []*Wishlist
	for rows.Next() {
		list, err := scanWishlist(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

func (s *SQLStore) DeleteWishlist(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.enqueueImagesTx(ctx, tx, `SELECT image_public_id FROM items WHERE wishlist_id = ? AND image_public_id <> ''`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM items WHERE wishlist_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete items: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM wishlists WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete wishlist: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) AddItem(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.bind(`
			INSERT INTO items (id, wishlist_id, owner_id, url, canonical_url, title, price, currency,
				image, image_public_id, description, category, rating, availability, purchased,
				event_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.WishlistID, item.OwnerID, item.URL, item.CanonicalURL, item.Title,
			item.Price, item.Currency, item.Image, item.ImagePublicID, item.Description,
			item.Category, item.Rating, item.Availability, item.Purchased,
			item.EventDate, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		res, err := tx.ExecContext(ctx, s.bind(`
			UPDATE wishlists SET item_count = item_count + 1, total_value = total_value + ?, updated_at = ?
			WHERE id = ?`), item.Price, now, item.WishlistID)
		if err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, s.bind(itemSelect+` WHERE id = ?`), id)
	return scanItem(row)
}

func (s *SQLStore) ListItems(ctx context.Context, wishlistID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(itemSelect+` WHERE wishlist_id = ? ORDER BY created_at`), wishlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLStore) SetItemPurchased(ctx context.Context, id string, purchased bool) error {
	res, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE items SET purchased = ?, updated_at = ? WHERE id = ?`),
		purchased, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteItem(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var wishlistID, publicID string
		var price float64
		err := tx.QueryRowContext(ctx, s.bind(`
			SELECT wishlist_id, image_public_id, price FROM items WHERE id = ?`), id).
			Scan(&wishlistID, &publicID, &price)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM items WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.bind(`
			UPDATE wishlists SET item_count = item_count - 1, total_value = total_value - ?, updated_at = ?
			WHERE id = ?`), price, time.Now().UTC(), wishlistID); err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}
		if publicID != "" {
			return s.enqueueCleanupTx(ctx, tx, publicID)
		}
		return nil
	})
}

func (s *SQLStore) RecomputeAggregates(ctx context.Context, wishlistID string) error {
	res, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE wishlists SET
			item_count = (SELECT COUNT(*) FROM items WHERE wishlist_id = wishlists.id),
			total_value = (SELECT COALESCE(SUM(price), 0) FROM items WHERE wishlist_id = wishlists.id),
			updated_at = ?
		WHERE id = ?`), time.Now().UTC(), wishlistID)
	if err != nil {
		return fmt.Errorf("failed to recompute aggregates: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteAccount(ctx context.Context, ownerID string) (int, error) {
	var removed int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.enqueueImagesTx(ctx, tx, `SELECT image_public_id FROM items WHERE owner_id = ? AND image_public_id <> ''`, ownerID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM items WHERE owner_id = ?`), ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete items: %w", err)
		}
		affected, _ := res.RowsAffected()
		removed = int(affected)

		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM wishlists WHERE owner_id = ?`), ownerID); err != nil {
			return fmt.Errorf("failed to delete wishlists: %w", err)
		}
		return nil
	})
	return removed, err
}

func (s *SQLStore) EnqueueImageCleanup(ctx context.Context, publicID string) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO image_cleanup_queue (id, public_id, enqueued_at) VALUES (?, ?, ?)`),
		uuid.NewString(), publicID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue cleanup: %w", err)
	}
	return nil
}

func (s *SQLStore) DueImageCleanups(ctx context.Context, limit, maxAttempts int) ([]*ImageCleanup, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT id, public_id, attempts, last_error, enqueued_at FROM image_cleanup_queue
		WHERE attempts < ? ORDER BY enqueued_at LIMIT ?`), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cleanup queue: %w", err)
	}
	defer rows.Close()

	var entries []*ImageCleanup
	for rows.Next() {
		entry := &ImageCleanup{}
		if err := rows.Scan(&entry.ID, &entry.PublicID, &entry.Attempts, &entry.LastError, &entry.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cleanup entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLStore) ResolveImageCleanup(ctx context.Context, id string, cleanupErr error) error {
	if cleanupErr == nil {
		_, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM image_cleanup_queue WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to dequeue cleanup: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE image_cleanup_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`),
		cleanupErr.Error(), id)
	if err != nil {
		return fmt.Errorf("failed to record cleanup failure: %w", err)
	}
	return nil
}

func (s *SQLStore) ItemsDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(itemSelect+`
		WHERE purchased = ? AND event_date IS NOT NULL AND event_date >= ? AND event_date < ?
		ORDER BY event_date`), false, now.UTC(), now.UTC().Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// enqueueImagesTx queues every public ID produced by the given single-arg
// query for cleanup, inside the surrounding transaction.
func (s *SQLStore) enqueueImagesTx(ctx context.Context, tx *sql.Tx, query, arg string) error {
	rows, err := tx.QueryContext(ctx, s.bind(query), arg)
	if err != nil {
		return fmt.Errorf("failed to collect image ids: %w", err)
	}
	var publicIDs []string
	for rows.Next() {
		var publicID string
		if err := rows.Scan(&publicID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan image id: %w", err)
		}
		publicIDs = append(publicIDs, publicID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, publicID := range publicIDs {
		if err := s.enqueueCleanupTx(ctx, tx, publicID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) enqueueCleanupTx(ctx context.Context, tx *sql.Tx, publicID string) error {
	_, err := tx.ExecContext(ctx, s.bind(`
		INSERT INTO image_cleanup_queue (id, public_id, enqueued_at) VALUES (?, ?, ?)`),
		uuid.NewString(), publicID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue cleanup: %w", err)
	}
	return nil
}

const itemSelect = `
	SELECT id, wishlist_id, owner_id, url, canonical_url, title, price, currency,
		image, image_public_id, description, category, rating, availability, purchased,
		event_date, created_at, updated_at
	FROM items`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWishlist(row rowScanner) (*Wishlist, error) {
	list := &Wishlist{}
	err := row.Scan(&list.ID, &list.OwnerID, &list.Name, &list.Description,
		&list.ItemCount, &list.TotalValue, &list.CreatedAt, &list.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wishlist: %w", err)
	}
	return list, nil
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	var eventDate sql.NullTime
	err := row.Scan(&item.ID, &item.WishlistID, &item.OwnerID, &item.URL, &item.CanonicalURL,
		&item.Title, &item.Price, &item.Currency, &item.Image, &item.ImagePublicID,
		&item.Description, &item.Category, &item.Rating, &item.Availability, &item.Purchased,
		&eventDate, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	if eventDate.Valid {
		t := eventDate.Time
		item.EventDate = &t
	}
	return item, nil
}
