package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

const (
	tracerName      = "github.com/rl1809/bizease/internal/core/service"
	defaultPageSize = 20
	maxPageSize     = 100
)

type CreateOrderInput struct {
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	OrderDate       time.Time
	Status          domain.OrderStatus // defaults to Pending
	OrderedProducts []LineItemInput

	// IdempotencyKey is optional; a reused key is rejected with domain.ErrDuplicateRequest.
	IdempotencyKey string
}

func (in CreateOrderInput) validate() error {
	v := domain.NewValidationError()
	if strings.TrimSpace(in.ClientName) == "" {
		v.Fields.Add("client_name", domain.MsgRequired)
	}
	if in.OrderDate.IsZero() {
		v.Fields.Add("order_date", domain.MsgRequired)
	}
	if len(in.OrderedProducts) == 0 {
		v.Fields.Add("ordered_products", domain.MsgEmptyList)
	}
	items := make([]domain.FieldErrors, len(in.OrderedProducts))
	for i, p := range in.OrderedProducts {
		items[i] = lineItemErrors(p)
	}
	v.Lists["ordered_products"] = items
	return v.OrNil()
}

func lineItemErrors(p LineItemInput) domain.FieldErrors {
	fe := domain.FieldErrors{}
	if strings.TrimSpace(p.Name) == "" {
		fe.Add("name", domain.MsgRequired)
	}
	if p.Quantity < 1 {
		fe.Add("quantity", domain.MsgMinOne)
	}
	return fe
}

// OrderPatch updates order header fields; nil fields are left unchanged.
type OrderPatch struct {
	ClientName  *string
	ClientEmail *string
	ClientPhone *string
	OrderDate   *time.Time
	Status      *domain.OrderStatus
}

// LineItemPatch carries a line-item update. Only Quantity may change; a non-nil Price
// rejects the whole patch.
type LineItemPatch struct {
	Quantity *int
	Price    *decimal.Decimal
}

func (p LineItemPatch) validate() error {
	v := domain.NewValidationError()
	if p.Price != nil {
		v.Fields.Add("price", domain.MsgPriceImmutable)
	}
	switch {
	case p.Quantity == nil:
		if p.Price == nil {
			v.Fields.Add("quantity", domain.MsgRequired)
		}
	case *p.Quantity < 1:
		v.Fields.Add("quantity", domain.MsgMinOne)
	}
	return v.OrNil()
}

type Option func(*OrderService)

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *OrderService) { s.tracer = tracer }
}

// WithPageSize sets the page size used when a list query does not carry one.
func WithPageSize(n int) Option {
	return func(s *OrderService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// OrderService commits orders against inventory. Every mutation runs in one unit of work.
type OrderService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository // nil disables idempotency keys
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
	pageSize int
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		db:       db,
		cache:    cache,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    newID,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *OrderService) CreateOrder(ctx context.Context, ownerID string, in CreateOrderInput) (_ *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.String("owner.id", ownerID), attribute.Int("order.line_items", len(in.OrderedProducts))))
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, s.reject(span, "create order", err, zap.String("owner_id", ownerID))
	}
	status := domain.OrderStatusPending
	if in.Status != "" {
		if status, err = domain.ParseOrderStatus(string(in.Status)); err != nil {
			return nil, s.reject(span, "create order", domain.FieldError("status", err.Error()))
		}
	}

	if in.IdempotencyKey != "" && s.cache != nil {
		key := fmt.Sprintf("order:%s:%s", ownerID, in.IdempotencyKey)
		claimed, cacheErr := s.cache.SetIdempotency(ctx, key)
		if cacheErr != nil {
			return nil, s.reject(span, "create order", fmt.Errorf("idempotency check failed: %w", cacheErr))
		}
		if !claimed {
			return nil, s.reject(span, "create order", domain.ErrDuplicateRequest, zap.String("idempotency_key", in.IdempotencyKey))
		}
		defer func() {
			if err == nil {
				return
			}
			if clearErr := s.cache.ClearIdempotency(context.WithoutCancel(ctx), key); clearErr != nil {
				s.logger.Error("failed to release idempotency key", zap.String("key", key), zap.Error(clearErr))
			}
		}()
	}

	var order domain.Order
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		ledger := NewLedger(tx)
		resolved, err := NewValidator(ledger).Validate(ctx, ownerID, in.OrderedProducts, nil)
		if err != nil {
			return err
		}

		now := s.now()
		order = domain.Order{
			ID:          s.newID(),
			OwnerID:     ownerID,
			ClientName:  strings.TrimSpace(in.ClientName),
			ClientEmail: in.ClientEmail,
			ClientPhone: in.ClientPhone,
			OrderDate:   domain.Date(in.OrderDate),
			Status:      domain.OrderStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		order.SetStatus(status, now)

		for _, r := range resolved {
			if err := reserve(ctx, ledger, &r.Item, r.Quantity); err != nil {
				return err
			}
			p := r.OrderedProduct(s.newID(), order.ID)
			p.CreatedAt = now
			order.OrderedProducts = append(order.OrderedProducts, p)
		}
		order.RecomputeTotal()

		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, s.reject(span, "create order", err, zap.String("owner_id", ownerID))
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("owner_id", ownerID),
		zap.Int("line_items", len(order.OrderedProducts)),
		zap.String("total_price", order.TotalPrice.StringFixed(2)))
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error) {
	order, err := s.db.GetOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, ownerID string, q domain.OrderQuery) (domain.OrderPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 0 {
		return domain.OrderPage{}, domain.FieldError("page", domain.MsgInvalidPage)
	}
	if q.PageSize <= 0 {
		q.PageSize = s.pageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.Sort.Field == "" {
		q.Sort = domain.DefaultOrderSort
	}

	orders, total, err := s.db.ListOrders(ctx, ownerID, q)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	page := domain.NewOrderPage(orders, total, q)
	if q.Page > page.PageCount {
		return domain.OrderPage{}, &domain.NotFoundError{Message: domain.MsgInvalidPage}
	}
	return page, nil
}

// UpdateOrder changes header fields. Line items are managed through the line-item operations.
func (s *OrderService) UpdateOrder(ctx context.Context, ownerID, orderID string, patch OrderPatch) (_ *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if patch.ClientName != nil && strings.TrimSpace(*patch.ClientName) == "" {
		return nil, s.reject(span, "update order", domain.FieldError("client_name", domain.MsgRequired))
	}
	if patch.Status != nil {
		if _, err := domain.ParseOrderStatus(string(*patch.Status)); err != nil {
			return nil, s.reject(span, "update order", domain.FieldError("status", err.Error()))
		}
	}

	var order *domain.Order
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		o, err := loadOrder(ctx, tx, ownerID, orderID)
		if err != nil {
			return err
		}
		order = o
		now := s.now()
		if patch.ClientName != nil {
			order.ClientName = strings.TrimSpace(*patch.ClientName)
		}
		if patch.ClientEmail != nil {
			order.ClientEmail = *patch.ClientEmail
		}
		if patch.ClientPhone != nil {
			order.ClientPhone = *patch.ClientPhone
		}
		if patch.OrderDate != nil {
			order.OrderDate = domain.Date(*patch.OrderDate)
		}
		if patch.Status != nil {
			order.SetStatus(*patch.Status, now)
		}
		order.UpdatedAt = now
		return tx.UpdateOrder(ctx, *order)
	})
	if err != nil {
		return nil, s.reject(span, "update order", err, zap.String("order_id", orderID))
	}

	s.logger.Info("order updated", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
	return order, nil
}

// DeleteOrder releases the stock held by every line item, then removes the order.
func (s *OrderService) DeleteOrder(ctx context.Context, ownerID, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var released int
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := loadOrder(ctx, tx, ownerID, orderID)
		if err != nil {
			return err
		}
		ledger := NewLedger(tx)
		for _, p := range order.OrderedProducts {
			if err := ledger.Release(ctx, p.InventoryItemID, p.Quantity); err != nil {
				return err
			}
			released += p.Quantity
		}
		return tx.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return s.reject(span, "delete order", err, zap.String("order_id", orderID))
	}

	s.logger.Info("order deleted", zap.String("order_id", orderID), zap.Int("released_units", released))
	return nil
}

func (s *OrderService) GetLineItem(ctx context.Context, ownerID, orderID, itemID string) (*domain.OrderedProduct, error) {
	order, err := s.GetOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	line, _ := order.LineItem(itemID)
	if line == nil {
		return nil, domain.ErrOrderedProductNotFound
	}
	return line, nil
}

func (s *OrderService) AddLineItem(ctx context.Context, ownerID, orderID string, in LineItemInput) (_ *domain.OrderedProduct, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.AddLineItem", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if fe := lineItemErrors(in); len(fe) > 0 {
		return nil, s.reject(span, "add ordered product", &domain.ValidationError{Fields: fe})
	}

	var added domain.OrderedProduct
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := loadOrder(ctx, tx, ownerID, orderID)
		if err != nil {
			return err
		}
		if !order.CanMutateLineItems() {
			return domain.ErrAddNonPending
		}

		ledger := NewLedger(tx)
		resolved, err := NewValidator(ledger).Validate(ctx, ownerID, []LineItemInput{in}, order.OrderedProducts)
		if err != nil {
			return err
		}
		r := resolved[0]
		if err := reserve(ctx, ledger, &r.Item, r.Quantity); err != nil {
			return err
		}

		now := s.now()
		added = r.OrderedProduct(s.newID(), order.ID)
		added.CreatedAt = now
		if err := tx.CreateOrderedProduct(ctx, added); err != nil {
			return err
		}
		order.OrderedProducts = append(order.OrderedProducts, added)
		order.RecomputeTotal()
		order.UpdatedAt = now
		return tx.UpdateOrder(ctx, *order)
	})
	if err != nil {
		return nil, s.reject(span, "add ordered product", err, zap.String("order_id", orderID))
	}

	s.logger.Info("ordered product added",
		zap.String("order_id", orderID),
		zap.String("product", added.Name),
		zap.Int("quantity", added.Quantity))
	return &added, nil
}

// UpdateLineItem changes a line item's quantity, reserving or releasing only the difference.
func (s *OrderService) UpdateLineItem(ctx context.Context, ownerID, orderID, itemID string, patch LineItemPatch) (_ *domain.OrderedProduct, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateLineItem",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("ordered_product.id", itemID)))
	defer span.End()

	if err := patch.validate(); err != nil {
		return nil, s.reject(span, "update ordered product", err, zap.String("order_id", orderID))
	}
	quantity := *patch.Quantity

	var updated domain.OrderedProduct
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := loadOrder(ctx, tx, ownerID, orderID)
		if err != nil {
			return err
		}
		line, _ := order.LineItem(itemID)
		if line == nil {
			return domain.ErrOrderedProductNotFound
		}
		if !order.CanMutateLineItems() {
			return domain.ErrUpdateNonPending
		}

		ledger := NewLedger(tx)
		switch delta := quantity - line.Quantity; {
		case delta > 0:
			item, err := tx.GetInventoryItem(ctx, ownerID, line.InventoryItemID)
			if err != nil {
				return fmt.Errorf("get inventory item: %w", err)
			}
			if item == nil {
				return domain.ProductErrors{line.Name: {domain.MsgMissingProduct(line.Name)}}
			}
			if delta > item.StockLevel {
				return domain.ProductErrors{line.Name: {domain.MsgNotEnoughStock(line.Name)}}
			}
			if err := reserve(ctx, ledger, item, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := ledger.Release(ctx, line.InventoryItemID, -delta); err != nil {
				return err
			}
		}

		line.Quantity = quantity
		if err := tx.UpdateOrderedProduct(ctx, *line); err != nil {
			return err
		}
		updated = *line
		order.RecomputeTotal()
		order.UpdatedAt = s.now()
		return tx.UpdateOrder(ctx, *order)
	})
	if err != nil {
		return nil, s.reject(span, "update ordered product", err, zap.String("order_id", orderID), zap.String("ordered_product_id", itemID))
	}

	s.logger.Info("ordered product updated",
		zap.String("order_id", orderID),
		zap.String("ordered_product_id", itemID),
		zap.Int("quantity", quantity))
	return &updated, nil
}

func (s *OrderService) DeleteLineItem(ctx context.Context, ownerID, orderID, itemID string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteLineItem",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("ordered_product.id", itemID)))
	defer span.End()

	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := loadOrder(ctx, tx, ownerID, orderID)
		if err != nil {
			return err
		}
		line, idx := order.LineItem(itemID)
		if line == nil {
			return domain.ErrOrderedProductNotFound
		}
		if !order.CanMutateLineItems() {
			return domain.ErrDeleteNonPending
		}
		if len(order.OrderedProducts) == 1 {
			return domain.ErrOnlyOrderedProduct
		}

		if err := NewLedger(tx).Release(ctx, line.InventoryItemID, line.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteOrderedProduct(ctx, line.ID); err != nil {
			return err
		}
		order.RemoveLineItem(idx)
		order.RecomputeTotal()
		order.UpdatedAt = s.now()
		return tx.UpdateOrder(ctx, *order)
	})
	if err != nil {
		return s.reject(span, "delete ordered product", err, zap.String("order_id", orderID), zap.String("ordered_product_id", itemID))
	}

	s.logger.Info("ordered product deleted", zap.String("order_id", orderID), zap.String("ordered_product_id", itemID))
	return nil
}

func loadOrder(ctx context.Context, tx port.Tx, ownerID, orderID string) (*domain.Order, error) {
	order, err := tx.GetOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// reserve reports a lost stock race the same way the validator reports short stock.
func reserve(ctx context.Context, ledger *Ledger, item *domain.InventoryItem, quantity int) error {
	err := ledger.Reserve(ctx, item, quantity)
	if errors.Is(err, domain.ErrInsufficientStock) {
		return domain.ProductErrors{item.ProductName: {domain.MsgNotEnoughStock(item.ProductName)}}
	}
	return err
}

// reject records err on the span and logs it: domain rejections at Warn, the rest at Error.
func (s *OrderService) reject(span trace.Span, op string, err error, fields ...zap.Field) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields = append(fields, zap.Error(err))
	if IsDomainError(err) {
		s.logger.Warn(op+" rejected", fields...)
	} else {
		s.logger.Error(op+" failed", fields...)
	}
	return err
}

// IsDomainError reports whether err is an expected rejection rather than an infrastructure failure.
func IsDomainError(err error) bool {
	var (
		validation *domain.ValidationError
		products   domain.ProductErrors
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
	)
	return errors.As(err, &validation) || errors.As(err, &products) ||
		errors.As(err, &notFound) || errors.As(err, &conflict)
}
