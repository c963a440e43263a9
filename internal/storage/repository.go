package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shoplist/internal/core"
	"shoplist/internal/store"
	"shoplist/internal/stream"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*SQLiteRepository)(nil)

// Fixed width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB

	// writeMu serializes write, snapshot reload and publish so watchers see
	// snapshots in commit order.
	writeMu sync.Mutex
	items   *stream.Subject[[]core.ShoppingItem]
	labels  *stream.Subject[[]core.Label]
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise return SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		items:  stream.NewSubject[[]core.ShoppingItem](),
		labels: stream.NewSubject[[]core.Label](),
	}
	r.writeMu.Lock()
	r.publishLocked(context.Background())
	r.writeMu.Unlock()
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	r.items.Close()
	r.labels.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable; used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// publishLocked reloads both tables and emits them. A failed reload is
// logged and skipped; the next successful write republishes.
func (r *SQLiteRepository) publishLocked(ctx context.Context) {
	if items, err := listItems(ctx, r.db); err != nil {
		slog.ErrorContext(ctx, "Failed to reload items snapshot", "error", err)
	} else {
		r.items.Publish(items)
	}
	if labels, err := listLabels(ctx, r.db); err != nil {
		slog.ErrorContext(ctx, "Failed to reload labels snapshot", "error", err)
	} else {
		r.labels.Publish(labels)
	}
}

func (r *SQLiteRepository) write(ctx context.Context, fn func(q queryer) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := fn(r.db); err != nil {
		return err
	}
	r.publishLocked(ctx)
	return nil
}

// Items

func (r *SQLiteRepository) WatchItems(ctx context.Context) <-chan []core.ShoppingItem {
	return r.items.Subscribe(ctx)
}

func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.ShoppingItem, error) {
	return listItems(ctx, r.db)
}

func (r *SQLiteRepository) GetItem(ctx context.Context, id int64) (core.ShoppingItem, error) {
	row := r.db.QueryRowContext(ctx, getItemQuery, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShoppingItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.ShoppingItem{}, core.WrapStorage("get item", err)
	}
	return item, nil
}

func (r *SQLiteRepository) InsertItem(ctx context.Context, item core.ShoppingItem) (int64, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	var id int64
	err := r.write(ctx, func(q queryer) error {
		res, err := q.ExecContext(ctx, insertItemQuery,
			item.Name,
			item.Quantity,
			item.EstimatedPrice.Cents,
			nullableCents(item.ActualPrice),
			item.Labels.Format(),
			item.IsPurchased,
			nullableTime(item.PurchasedAt),
			formatTime(item.CreatedAt),
		)
		if err != nil {
			return core.WrapStorage("insert item", err)
		}
		id, err = res.LastInsertId()
		return core.WrapStorage("insert item", err)
	})
	if err != nil {
		return 0, err
	}
	slog.DebugContext(ctx, "Item saved to SQLite", "id", id, "name", item.Name)
	return id, nil
}

func (r *SQLiteRepository) UpdateItem(ctx context.Context, item core.ShoppingItem) error {
	return r.write(ctx, func(q queryer) error { return updateItem(ctx, q, item) })
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	return r.write(ctx, func(q queryer) error {
		res, err := q.ExecContext(ctx, deleteItemQuery, id)
		return affectedOne("delete item", res, err)
	})
}

func (r *SQLiteRepository) DeleteItemsWhere(ctx context.Context, pred store.ItemPredicate) (int, error) {
	var n int
	err := r.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.DeleteItemsWhere(ctx, pred)
		return err
	})
	return n, err
}

func (r *SQLiteRepository) DeleteAllItems(ctx context.Context) error {
	return r.write(ctx, func(q queryer) error {
		_, err := q.ExecContext(ctx, deleteAllItemsQuery)
		return core.WrapStorage("delete all items", err)
	})
}

func (r *SQLiteRepository) SearchUnpurchased(ctx context.Context, text string) ([]core.ShoppingItem, error) {
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	rows, err := r.db.QueryContext(ctx, searchUnpurchasedQuery, pattern)
	if err != nil {
		return nil, core.WrapStorage("search items", err)
	}
	return collectItems("search items", rows)
}

func (r *SQLiteRepository) MarkPurchased(ctx context.Context, id int64, price core.Money, at time.Time) error {
	return r.write(ctx, func(q queryer) error {
		res, err := q.ExecContext(ctx, markPurchasedQuery, price.Cents, formatTime(at), id)
		return affectedOne("mark purchased", res, err)
	})
}

// Labels

func (r *SQLiteRepository) WatchLabels(ctx context.Context) <-chan []core.Label {
	return r.labels.Subscribe(ctx)
}

func (r *SQLiteRepository) ListLabels(ctx context.Context) ([]core.Label, error) {
	return listLabels(ctx, r.db)
}

func (r *SQLiteRepository) GetLabel(ctx context.Context, id int64) (core.Label, error) {
	var l core.Label
	err := r.db.QueryRowContext(ctx, getLabelQuery, id).Scan(&l.ID, &l.Name, &l.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Label{}, core.ErrNotFound
	}
	if err != nil {
		return core.Label{}, core.WrapStorage("get label", err)
	}
	return l, nil
}

func (r *SQLiteRepository) InsertLabel(ctx context.Context, label core.Label) (int64, error) {
	var id int64
	err := r.write(ctx, func(q queryer) error {
		res, err := q.ExecContext(ctx, insertLabelQuery, label.Name, label.Color)
		if err != nil {
			return core.WrapStorage("insert label", err)
		}
		id, err = res.LastInsertId()
		return core.WrapStorage("insert label", err)
	})
	return id, err
}

func (r *SQLiteRepository) UpdateLabel(ctx context.Context, label core.Label) error {
	return r.write(ctx, func(q queryer) error { return updateLabel(ctx, q, label) })
}

func (r *SQLiteRepository) DeleteLabel(ctx context.Context, id int64) error {
	return r.write(ctx, func(q queryer) error { return deleteLabel(ctx, q, id) })
}

func (r *SQLiteRepository) CountByName(ctx context.Context, name string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countLabelsByNameQuery, name).Scan(&n); err != nil {
		return 0, core.WrapStorage("count labels", err)
	}
	return n, nil
}

// InTx runs fn inside a database transaction and publishes fresh snapshots
// once it commits.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapStorage("begin tx", err)
	}
	if err := fn(&txView{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return core.WrapStorage("commit tx", err)
	}
	r.publishLocked(ctx)
	return nil
}

type txView struct {
	q queryer
}

func (t *txView) ListItems(ctx context.Context) ([]core.ShoppingItem, error) {
	return listItems(ctx, t.q)
}

func (t *txView) UpdateItem(ctx context.Context, item core.ShoppingItem) error {
	return updateItem(ctx, t.q, item)
}

// DeleteItemsWhere evaluates pred in Go over the parsed label sets; the
// delimited column is never matched with LIKE.
func (t *txView) DeleteItemsWhere(ctx context.Context, pred store.ItemPredicate) (int, error) {
	items, err := listItems(ctx, t.q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if !pred(it) {
			continue
		}
		if _, err := t.q.ExecContext(ctx, deleteItemQuery, it.ID); err != nil {
			return n, core.WrapStorage("delete item", err)
		}
		n++
	}
	return n, nil
}

func (t *txView) UpdateLabel(ctx context.Context, label core.Label) error {
	return updateLabel(ctx, t.q, label)
}

func (t *txView) DeleteLabel(ctx context.Context, id int64) error {
	return deleteLabel(ctx, t.q, id)
}

// shared statements

func listItems(ctx context.Context, q queryer) ([]core.ShoppingItem, error) {
	rows, err := q.QueryContext(ctx, listItemsQuery)
	if err != nil {
		return nil, core.WrapStorage("list items", err)
	}
	return collectItems("list items", rows)
}

func listLabels(ctx context.Context, q queryer) ([]core.Label, error) {
	rows, err := q.QueryContext(ctx, listLabelsQuery)
	if err != nil {
		return nil, core.WrapStorage("list labels", err)
	}
	defer rows.Close()
	labels := []core.Label{}
	for rows.Next() {
		var l core.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, core.WrapStorage("list labels", err)
		}
		labels = append(labels, l)
	}
	return labels, core.WrapStorage("list labels", rows.Err())
}

func updateItem(ctx context.Context, q queryer, item core.ShoppingItem) error {
	res, err := q.ExecContext(ctx, updateItemQuery,
		item.Name,
		item.Quantity,
		item.EstimatedPrice.Cents,
		nullableCents(item.ActualPrice),
		item.Labels.Format(),
		item.IsPurchased,
		nullableTime(item.PurchasedAt),
		item.ID,
	)
	return affectedOne("update item", res, err)
}

func updateLabel(ctx context.Context, q queryer, label core.Label) error {
	res, err := q.ExecContext(ctx, updateLabelQuery, label.Name, label.Color, label.ID)
	return affectedOne("update label", res, err)
}

func deleteLabel(ctx context.Context, q queryer, id int64) error {
	res, err := q.ExecContext(ctx, deleteLabelQuery, id)
	return affectedOne("delete label", res, err)
}

// affectedOne maps a zero-row write to core.ErrNotFound.
func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return core.WrapStorage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.WrapStorage(op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (core.ShoppingItem, error) {
	var (
		it          core.ShoppingItem
		actual      sql.NullInt64
		rawLabels   string
		purchasedAt sql.NullString
		createdAt   string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Quantity, &it.EstimatedPrice.Cents, &actual,
		&rawLabels, &it.IsPurchased, &purchasedAt, &createdAt); err != nil {
		return core.ShoppingItem{}, err
	}
	it.Labels = core.ParseLabels(rawLabels)
	if actual.Valid {
		it.ActualPrice = &core.Money{Cents: actual.Int64}
	}
	if purchasedAt.Valid {
		t, err := time.Parse(timeLayout, purchasedAt.String)
		if err != nil {
			return core.ShoppingItem{}, fmt.Errorf("parse purchased_at: %w", err)
		}
		it.PurchasedAt = &t
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("parse created_at: %w", err)
	}
	it.CreatedAt = t
	return it, nil
}

func collectItems(op string, rows *sql.Rows) ([]core.ShoppingItem, error) {
	defer rows.Close()
	items := []core.ShoppingItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, core.WrapStorage(op, err)
		}
		items = append(items, it)
	}
	return items, core.WrapStorage(op, rows.Err())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullableCents(m *core.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Cents, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
