package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/core/service"
)

// OwnerMetadataKey carries the principal on gRPC calls.
const OwnerMetadataKey = "x-owner-id"

type GRPCHandler struct {
	orderService *service.OrderService
	statsService *service.StatsService
}

func NewGRPCHandler(orders *service.OrderService, stats *service.StatsService) *GRPCHandler {
	return &GRPCHandler{orderService: orders, statsService: stats}
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderReply, error) {
	in, err := createOrderInput(req)
	if err != nil {
		return nil, toStatus(err)
	}
	order, err := h.orderService.CreateOrder(ctx, ownerFrom(ctx), in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Detail: "Order created successfully", Order: toOrderDTO(*order)}, nil
}

// createOrderInput reports every structural problem of the request at once, the same set
// the HTTP transport reports for the equivalent body.
func createOrderInput(req *CreateOrderRequest) (service.CreateOrderInput, error) {
	in := service.CreateOrderInput{
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		IdempotencyKey: req.IdempotencyKey,
	}

	verr := domain.NewValidationError()
	if strings.TrimSpace(req.ClientName) == "" {
		verr.Fields.Add("client_name", domain.MsgRequired)
	}
	if req.OrderDate == "" {
		verr.Fields.Add("order_date", domain.MsgRequired)
	} else if d, err := domain.ParseDate(req.OrderDate); err != nil {
		verr.Fields.Add("order_date", domain.MsgInvalidDate)
	} else {
		in.OrderDate = d
	}
	if req.Status != "" {
		st, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			verr.Fields.Add("status", err.Error())
		}
		in.Status = st
	}

	if len(req.OrderedProducts) == 0 {
		verr.Fields.Add("ordered_products", domain.MsgEmptyList)
	}
	list := make([]domain.FieldErrors, len(req.OrderedProducts))
	for i, p := range req.OrderedProducts {
		li, fe := lineItemMessage(p)
		list[i] = fe
		in.OrderedProducts = append(in.OrderedProducts, li)
	}
	verr.Lists["ordered_products"] = list
	return in, verr.OrNil()
}

func lineItemMessage(p LineItemMessage) (service.LineItemInput, domain.FieldErrors) {
	fe := domain.FieldErrors{}
	in := service.LineItemInput{Name: p.Name}
	if strings.TrimSpace(p.Name) == "" {
		fe.Add("name", domain.MsgRequired)
	}
	switch {
	case p.Quantity == nil:
		fe.Add("quantity", domain.MsgRequired)
	case *p.Quantity < 1:
		fe.Add("quantity", domain.MsgMinOne)
	default:
		in.Quantity = *p.Quantity
	}
	if p.Price == "" {
		fe.Add("price", domain.MsgRequired)
	} else if d, err := decimal.NewFromString(p.Price); err != nil {
		fe.Add("price", domain.MsgInvalidNumber)
	} else {
		in.Price = d
	}
	return in, fe
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *OrderRequest) (*OrderReply, error) {
	order, err := h.orderService.GetOrder(ctx, ownerFrom(ctx), req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: toOrderDTO(*order)}, nil
}

func (h *GRPCHandler) DeleteOrder(ctx context.Context, req *OrderRequest) (*MessageReply, error) {
	if err := h.orderService.DeleteOrder(ctx, ownerFrom(ctx), req.OrderID); err != nil {
		return nil, toStatus(err)
	}
	return &MessageReply{Detail: "Order deleted successfully"}, nil
}

func (h *GRPCHandler) AddOrderedProduct(ctx context.Context, req *AddOrderedProductRequest) (*OrderedProductReply, error) {
	in, fe := lineItemMessage(req.LineItemMessage)
	if len(fe) > 0 {
		return nil, toStatus(&domain.ValidationError{Fields: fe})
	}
	added, err := h.orderService.AddLineItem(ctx, ownerFrom(ctx), req.OrderID, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderedProductReply{Detail: "product added to Order successfully", OrderedProduct: toOrderedProductDTO(*added)}, nil
}

func (h *GRPCHandler) UpdateOrderedProduct(ctx context.Context, req *UpdateOrderedProductRequest) (*OrderedProductReply, error) {
	patch := service.LineItemPatch{Quantity: req.Quantity}
	if req.Price != nil {
		p, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return nil, toStatus(domain.FieldError("price", domain.MsgInvalidNumber))
		}
		patch.Price = &p
	}
	updated, err := h.orderService.UpdateLineItem(ctx, ownerFrom(ctx), req.OrderID, req.OrderedProductID, patch)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderedProductReply{Detail: "Ordered product updated successfully", OrderedProduct: toOrderedProductDTO(*updated)}, nil
}

func (h *GRPCHandler) DeleteOrderedProduct(ctx context.Context, req *OrderedProductRequest) (*MessageReply, error) {
	if err := h.orderService.DeleteLineItem(ctx, ownerFrom(ctx), req.OrderID, req.OrderedProductID); err != nil {
		return nil, toStatus(err)
	}
	return &MessageReply{Detail: "Ordered product deleted successfully"}, nil
}

func (h *GRPCHandler) GetOrderStats(ctx context.Context, _ *StatsRequest) (*StatsReply, error) {
	stats, err := h.statsService.GetStats(ctx, ownerFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &StatsReply{Stats: toStatsDTO(stats)}, nil
}

// toStatus maps domain errors onto gRPC codes. Structured details travel as JSON in the message.
func toStatus(err error) error {
	var (
		validation *domain.ValidationError
		products   domain.ProductErrors
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &products):
		_, detail := errorBody(err)
		msg, _ := json.Marshal(detail)
		return status.Error(codes.InvalidArgument, string(msg))
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Message)
	case errors.As(err, &conflict):
		if conflict == domain.ErrDuplicateRequest {
			return status.Error(codes.AlreadyExists, conflict.Message)
		}
		return status.Error(codes.FailedPrecondition, conflict.Message)
	}
	return status.Error(codes.Internal, msgInternal)
}

// OwnerInterceptor authenticates calls to orders.v1.OrderService from the x-owner-id metadata.
func OwnerInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+OrderServiceName+"/") {
		return handler(ctx, req)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var ownerID string
	if vals := md.Get(OwnerMetadataKey); len(vals) > 0 {
		ownerID = strings.TrimSpace(vals[0])
	}
	if ownerID == "" {
		return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
	}
	return handler(withOwner(ctx, ownerID), req)
}

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("rpc handled", fields...)
		}
		return resp, err
	}
}
