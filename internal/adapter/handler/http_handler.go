package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/core/service"
)

const IdempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	orderService     *service.OrderService
	inventoryService *service.InventoryService
	statsService     *service.StatsService
	logger           *zap.Logger
}

func NewHTTPHandler(orders *service.OrderService, inventory *service.InventoryService, stats *service.StatsService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orderService: orders, inventoryService: inventory, statsService: stats, logger: logger}
}

// Routes mounts the API under /api/v1 plus an unauthenticated /health.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireOwner)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/stats", h.GetStats)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Put("/", h.UpdateOrder)
				r.Delete("/", h.DeleteOrder)
				r.Post("/ordered-products", h.AddOrderedProduct)
				r.Get("/ordered-products/{itemID}", h.GetOrderedProduct)
				r.Put("/ordered-products/{itemID}", h.UpdateOrderedProduct)
				r.Delete("/ordered-products/{itemID}", h.DeleteOrderedProduct)
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/", h.CreateInventoryItem)
			r.Get("/", h.ListInventory)
			r.Get("/{itemID}", h.GetInventoryItem)
		})
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// body decodes the request object, answering malformed JSON itself.
func (h *HTTPHandler) body(w http.ResponseWriter, r *http.Request) (*fields, bool) {
	f, err := decodeBody(r.Body)
	if errors.Is(err, errMalformedBody) {
		writeJSON(w, http.StatusBadRequest, Response{Detail: msgInvalidBody})
		return nil, false
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return f, true
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	f, ok := h.body(w, r)
	if !ok {
		return
	}

	in := service.CreateOrderInput{IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader))}
	in.ClientName = f.RequiredText("client_name")
	in.ClientEmail, _ = f.String("client_email", false)
	in.ClientPhone, _ = f.String("client_phone", false)
	in.OrderDate, _ = f.Date("order_date", true)
	in.Status, _ = f.Status("status")

	verr := domain.NewValidationError()
	if items, ok := f.Objects("ordered_products", true); ok {
		list := make([]domain.FieldErrors, len(items))
		for i, item := range items {
			li, fe := lineItem(item)
			list[i] = fe
			in.OrderedProducts = append(in.OrderedProducts, li)
		}
		verr.Lists["ordered_products"] = list
	}
	verr.Fields = f.errs
	if err := verr.OrNil(); err != nil {
		writeError(w, err)
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), ownerFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Detail: "Order created successfully", Data: toOrderDTO(*order)})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q, err := parseOrderQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.orderService.ListOrders(r.Context(), ownerFrom(r.Context()), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: toOrderPageDTO(page)})
}

func parseOrderQuery(r *http.Request) (domain.OrderQuery, error) {
	values := r.URL.Query()
	errs := domain.FieldErrors{}
	q := domain.OrderQuery{Search: strings.TrimSpace(values.Get("query"))}

	if s := values.Get("status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			errs.Add("status", err.Error())
		}
		q.Status = status
	}
	sort, ok := domain.ParseOrderSort(values.Get("order"))
	if !ok {
		errs.Add("order", domain.MsgInvalidSortKey)
	}
	q.Sort = sort

	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"page_size", &q.PageSize}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs.Add(p.name, domain.MsgInvalidPage)
			continue
		}
		*p.dst = n
	}

	if len(errs) > 0 {
		return domain.OrderQuery{}, &domain.ValidationError{Fields: errs}
	}
	return q, nil
}

func (h *HTTPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.GetStats(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: toStatsDTO(stats)})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: toOrderDTO(*order)})
}

func (h *HTTPHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	f, ok := h.body(w, r)
	if !ok {
		return
	}

	var patch service.OrderPatch
	if f.Has("client_name") {
		name := f.RequiredText("client_name")
		patch.ClientName = &name
	}
	if s, ok := f.String("client_email", false); ok {
		patch.ClientEmail = &s
	}
	if s, ok := f.String("client_phone", false); ok {
		patch.ClientPhone = &s
	}
	if d, ok := f.Date("order_date", false); ok {
		patch.OrderDate = &d
	}
	if s, ok := f.Status("status"); ok {
		patch.Status = &s
	}
	if err := f.Err(); err != nil {
		writeError(w, err)
		return
	}

	order, err := h.orderService.UpdateOrder(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Detail: "Order updated successfully", Data: toOrderDTO(*order)})
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.DeleteOrder(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Detail: "Order deleted successfully"})
}

func (h *HTTPHandler) AddOrderedProduct(w http.ResponseWriter, r *http.Request) {
	f, ok := h.body(w, r)
	if !ok {
		return
	}
	in, fe := lineItem(f)
	if len(fe) > 0 {
		writeError(w, &domain.ValidationError{Fields: fe})
		return
	}

	added, err := h.orderService.AddLineItem(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Detail: "product added to Order successfully", Data: toOrderedProductDTO(*added)})
}

func (h *HTTPHandler) GetOrderedProduct(w http.ResponseWriter, r *http.Request) {
	line, err := h.orderService.GetLineItem(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: toOrderedProductDTO(*line)})
}

func (h *HTTPHandler) UpdateOrderedProduct(w http.ResponseWriter, r *http.Request) {
	f, ok := h.body(w, r)
	if !ok {
		return
	}

	var patch service.LineItemPatch
	if q, ok := f.Int("quantity", false); ok {
		patch.Quantity = &q
	}
	if f.Has("price") {
		p, _ := f.Decimal("price", false)
		patch.Price = &p
	}
	if err := f.Err(); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.orderService.UpdateLineItem(r.Context(), ownerFrom(r.Context()),
		chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Detail: "Ordered product updated successfully", Data: toOrderedProductDTO(*updated)})
}

func (h *HTTPHandler) DeleteOrderedProduct(w http.ResponseWriter, r *http.Request) {
	err := h.orderService.DeleteLineItem(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Detail: "Ordered product deleted successfully"})
}

func (h *HTTPHandler) CreateInventoryItem(w http.ResponseWriter, r *http.Request) {
	f, ok := h.body(w, r)
	if !ok {
		return
	}

	var in service.CreateInventoryItemInput
	in.ProductName = f.RequiredText("product_name")
	in.Price, _ = f.Decimal("price", true)
	in.StockLevel, _ = f.Int("stock_level", true)
	in.DateAdded, _ = f.Date("date_added", false)
	if err := f.Err(); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.inventoryService.CreateItem(r.Context(), ownerFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Detail: "Inventory item created successfully", Data: toInventoryItemDTO(*item)})
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventoryService.ListItems(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]inventoryItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toInventoryItemDTO(item))
	}
	writeJSON(w, http.StatusOK, Response{Data: out})
}

func (h *HTTPHandler) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventoryService.GetItem(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: toInventoryItemDTO(*item)})
}
