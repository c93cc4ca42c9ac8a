package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLAdapter implements the repositories over database/sql. Calls made through WithinTx run in
// a serializable transaction and lock the inventory and order rows they read.
type SQLAdapter struct {
	*sqlQueries
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB, dialect Dialect) *SQLAdapter {
	return &SQLAdapter{
		sqlQueries: &sqlQueries{q: db, dialect: dialect},
		db:         db,
	}
}

func (a *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range a.dialect.migrations {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

func (a *SQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqlQueries{q: tx, dialect: a.dialect, locking: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlQueries struct {
	q       querier
	dialect Dialect
	locking bool
}

func (s *sqlQueries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlQueries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlQueries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlQueries) forUpdate() string {
	if s.locking {
		return " FOR UPDATE"
	}
	return ""
}

const inventoryColumns = `id, owner_id, product_name, price, stock_level, date_added, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventory(row rowScanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := row.Scan(&item.ID, &item.OwnerID, &item.ProductName, &item.Price, &item.StockLevel,
		&item.DateAdded, &item.Version, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.DateAdded = domain.Date(item.DateAdded)
	return &item, nil
}

func (s *sqlQueries) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) error {
	_, err := s.exec(ctx, `
		INSERT INTO inventory (id, owner_id, product_name, name_key, price, stock_level, date_added, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, item.ProductName, item.NameKey(), item.Price, item.StockLevel,
		item.DateAdded, item.Version, item.UpdatedAt,
	)
	if s.dialect.uniqueErr(err) {
		return domain.ErrDuplicateInventoryItem
	}
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func (s *sqlQueries) GetInventoryItem(ctx context.Context, ownerID, itemID string) (*domain.InventoryItem, error) {
	item, err := scanInventory(s.queryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE id = ? AND owner_id = ?`+s.forUpdate(),
		itemID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return item, nil
}

func (s *sqlQueries) FindInventoryByName(ctx context.Context, ownerID, nameKey string) (*domain.InventoryItem, error) {
	item, err := scanInventory(s.queryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE owner_id = ? AND name_key = ?`+s.forUpdate(),
		ownerID, nameKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return item, nil
}

func (s *sqlQueries) ListInventory(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	rows, err := s.query(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		item, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *sqlQueries) DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error) {
	result, err := s.exec(ctx, `
		UPDATE inventory
		SET stock_level = stock_level - ?, version = version + 1, updated_at = ?
		WHERE id = ? AND stock_level >= ?`,
		quantity, time.Now(), itemID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("update inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update inventory: %w", err)
	}
	return rows == 1, nil
}

func (s *sqlQueries) IncrementStock(ctx context.Context, itemID string, quantity int) error {
	_, err := s.exec(ctx, `
		UPDATE inventory
		SET stock_level = stock_level + ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		quantity, time.Now(), itemID,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	return nil
}

const orderColumns = `o.id, o.owner_id, o.client_name, o.client_email, o.client_phone, o.order_date,
	o.delivery_date, o.status, o.total_price, o.created_at, o.updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o        domain.Order
		status   string
		delivery sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OwnerID, &o.ClientName, &o.ClientEmail, &o.ClientPhone, &o.OrderDate,
		&delivery, &status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.OrderDate = domain.Date(o.OrderDate)
	if delivery.Valid {
		d := domain.Date(delivery.Time)
		o.DeliveryDate = &d
	}
	return &o, nil
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *sqlQueries) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := s.exec(ctx, `
		INSERT INTO orders (id, owner_id, client_name, client_email, client_phone, order_date,
			delivery_date, status, total_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OwnerID, order.ClientName, order.ClientEmail, order.ClientPhone, order.OrderDate,
		nullDate(order.DeliveryDate), string(order.Status), order.TotalPrice, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, p := range order.OrderedProducts {
		if err := s.CreateOrderedProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlQueries) GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error) {
	order, err := scanOrder(s.queryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = ? AND o.owner_id = ?`+s.forUpdate(),
		orderID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	products, err := s.orderedProducts(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.OrderedProducts = products[order.ID]
	return order, nil
}

var sortColumns = map[domain.SortField]string{
	domain.SortByID:         "o.id",
	domain.SortByOrderDate:  "o.order_date",
	domain.SortByTotalPrice: "o.total_price",
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern builds a substring pattern that matches search literally.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func (s *sqlQueries) ListOrders(ctx context.Context, ownerID string, q domain.OrderQuery) ([]domain.Order, int, error) {
	where := []string{"o.owner_id = ?"}
	args := []any{ownerID}
	if q.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, string(q.Status))
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		pattern := likePattern(search)
		where = append(where, `(LOWER(o.client_name) LIKE ? ESCAPE '!' OR EXISTS (
			SELECT 1 FROM ordered_products op WHERE op.order_id = o.id AND LOWER(op.name) LIKE ? ESCAPE '!'))`)
		args = append(args, pattern, pattern)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM orders o WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	column, ok := sortColumns[q.Sort.Field]
	if !ok {
		column = sortColumns[domain.SortByOrderDate]
	}
	dir := "ASC"
	if q.Sort.Descending {
		dir = "DESC"
	}
	order := column + " " + dir
	if column != "o.id" {
		order += ", o.id " + dir
	}

	rows, err := s.query(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE `+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}

	products, err := s.orderedProducts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].OrderedProducts = products[orders[i].ID]
	}
	return orders, total, nil
}

// orderedProducts loads the line items of the given orders grouped by order id.
func (s *sqlQueries) orderedProducts(ctx context.Context, orderIDs []string) (map[string][]domain.OrderedProduct, error) {
	grouped := make(map[string][]domain.OrderedProduct, len(orderIDs))
	if len(orderIDs) == 0 {
		return grouped, nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(orderIDs)), ", ")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := s.query(ctx, `
		SELECT id, order_id, inventory_item_id, name, quantity, price, created_at
		FROM ordered_products WHERE order_id IN (`+marks+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query ordered products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.OrderedProduct
		if err := rows.Scan(&p.ID, &p.OrderID, &p.InventoryItemID, &p.Name, &p.Quantity, &p.Price, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ordered product: %w", err)
		}
		grouped[p.OrderID] = append(grouped[p.OrderID], p)
	}
	return grouped, rows.Err()
}

func (s *sqlQueries) UpdateOrder(ctx context.Context, order domain.Order) error {
	_, err := s.exec(ctx, `
		UPDATE orders
		SET client_name = ?, client_email = ?, client_phone = ?, order_date = ?, delivery_date = ?,
			status = ?, total_price = ?, updated_at = ?
		WHERE id = ?`,
		order.ClientName, order.ClientEmail, order.ClientPhone, order.OrderDate, nullDate(order.DeliveryDate),
		string(order.Status), order.TotalPrice, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// DeleteOrder removes line items explicitly; the schema has no cascading foreign keys.
func (s *sqlQueries) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := s.exec(ctx, `DELETE FROM ordered_products WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete ordered products: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *sqlQueries) CreateOrderedProduct(ctx context.Context, p domain.OrderedProduct) error {
	_, err := s.exec(ctx, `
		INSERT INTO ordered_products (id, order_id, inventory_item_id, name, quantity, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.InventoryItemID, p.Name, p.Quantity, p.Price, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ordered product: %w", err)
	}
	return nil
}

func (s *sqlQueries) UpdateOrderedProduct(ctx context.Context, p domain.OrderedProduct) error {
	_, err := s.exec(ctx, `UPDATE ordered_products SET quantity = ? WHERE id = ?`, p.Quantity, p.ID)
	if err != nil {
		return fmt.Errorf("update ordered product: %w", err)
	}
	return nil
}

func (s *sqlQueries) DeleteOrderedProduct(ctx context.Context, productID string) error {
	if _, err := s.exec(ctx, `DELETE FROM ordered_products WHERE id = ?`, productID); err != nil {
		return fmt.Errorf("delete ordered product: %w", err)
	}
	return nil
}

func (s *sqlQueries) OrderStats(ctx context.Context, ownerID string) (domain.OrderStats, error) {
	var stats domain.OrderStats
	err := s.queryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_price), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM orders WHERE owner_id = ?`,
		string(domain.OrderStatusPending), ownerID,
	).Scan(&stats.TotalOrders, &stats.TotalRevenue, &stats.PendingOrders)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	return stats, nil
}
