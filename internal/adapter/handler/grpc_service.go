package handler

import (
	"context"

	"google.golang.org/grpc"
)

const OrderServiceName = "orders.v1.OrderService"

type LineItemMessage struct {
	Name     string `json:"name"`
	Quantity *int   `json:"quantity"`
	Price    string `json:"price"`
}

type CreateOrderRequest struct {
	ClientName      string            `json:"client_name"`
	ClientEmail     string            `json:"client_email,omitempty"`
	ClientPhone     string            `json:"client_phone,omitempty"`
	OrderDate       string            `json:"order_date"`
	Status          string            `json:"status,omitempty"`
	OrderedProducts []LineItemMessage `json:"ordered_products"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type AddOrderedProductRequest struct {
	OrderID string `json:"order_id"`
	LineItemMessage
}

type UpdateOrderedProductRequest struct {
	OrderID          string  `json:"order_id"`
	OrderedProductID string  `json:"ordered_product_id"`
	Quantity         *int    `json:"quantity,omitempty"`
	Price            *string `json:"price,omitempty"`
}

type OrderedProductRequest struct {
	OrderID          string `json:"order_id"`
	OrderedProductID string `json:"ordered_product_id"`
}

type StatsRequest struct{}

type OrderReply struct {
	Detail string   `json:"detail,omitempty"`
	Order  orderDTO `json:"order"`
}

type OrderedProductReply struct {
	Detail         string            `json:"detail,omitempty"`
	OrderedProduct orderedProductDTO `json:"ordered_product"`
}

type StatsReply struct {
	Stats statsDTO `json:"stats"`
}

type MessageReply struct {
	Detail string `json:"detail"`
}

// OrderServiceServer is the server API for orders.v1.OrderService.
type OrderServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*OrderReply, error)
	GetOrder(context.Context, *OrderRequest) (*OrderReply, error)
	DeleteOrder(context.Context, *OrderRequest) (*MessageReply, error)
	AddOrderedProduct(context.Context, *AddOrderedProductRequest) (*OrderedProductReply, error)
	UpdateOrderedProduct(context.Context, *UpdateOrderedProductRequest) (*OrderedProductReply, error)
	DeleteOrderedProduct(context.Context, *OrderedProductRequest) (*MessageReply, error)
	GetOrderStats(context.Context, *StatsRequest) (*StatsReply, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req, Reply any](method string, call func(OrderServiceServer, context.Context, *Req) (*Reply, error)) grpc.MethodDesc {
	fullMethod := "/" + OrderServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateOrder", OrderServiceServer.CreateOrder),
		unaryHandler("GetOrder", OrderServiceServer.GetOrder),
		unaryHandler("DeleteOrder", OrderServiceServer.DeleteOrder),
		unaryHandler("AddOrderedProduct", OrderServiceServer.AddOrderedProduct),
		unaryHandler("UpdateOrderedProduct", OrderServiceServer.UpdateOrderedProduct),
		unaryHandler("DeleteOrderedProduct", OrderServiceServer.DeleteOrderedProduct),
		unaryHandler("GetOrderStats", OrderServiceServer.GetOrderStats),
	},
	Metadata: "orders/v1/orders.json",
}

// OrderServiceClient calls orders.v1.OrderService with the JSON codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func invoke[Reply any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+OrderServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	return invoke[OrderReply](ctx, c.cc, "CreateOrder", in, opts)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	return invoke[OrderReply](ctx, c.cc, "GetOrder", in, opts)
}

func (c *OrderServiceClient) DeleteOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*MessageReply, error) {
	return invoke[MessageReply](ctx, c.cc, "DeleteOrder", in, opts)
}

func (c *OrderServiceClient) AddOrderedProduct(ctx context.Context, in *AddOrderedProductRequest, opts ...grpc.CallOption) (*OrderedProductReply, error) {
	return invoke[OrderedProductReply](ctx, c.cc, "AddOrderedProduct", in, opts)
}

func (c *OrderServiceClient) UpdateOrderedProduct(ctx context.Context, in *UpdateOrderedProductRequest, opts ...grpc.CallOption) (*OrderedProductReply, error) {
	return invoke[OrderedProductReply](ctx, c.cc, "UpdateOrderedProduct", in, opts)
}

func (c *OrderServiceClient) DeleteOrderedProduct(ctx context.Context, in *OrderedProductRequest, opts ...grpc.CallOption) (*MessageReply, error) {
	return invoke[MessageReply](ctx, c.cc, "DeleteOrderedProduct", in, opts)
}

func (c *OrderServiceClient) GetOrderStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsReply, error) {
	return invoke[StatsReply](ctx, c.cc, "GetOrderStats", in, opts)
}
