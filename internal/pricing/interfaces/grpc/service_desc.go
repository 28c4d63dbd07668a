package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 完整服务名
const ServiceName = "quantpricing.v1.PricingService"

// PricingServiceServer 定价 gRPC 服务。消息体为 google.protobuf.Struct，
// 字段与 HTTP 接口的 JSON 请求/响应一致
type PricingServiceServer interface {
	Price(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Greeks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImpliedVol(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateScenarios(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BatchPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPricingServiceServer 注册服务实现
func RegisterPricingServiceServer(s grpc.ServiceRegistrar, srv PricingServiceServer) {
	s.RegisterService(&PricingServiceDesc, srv)
}

// unaryHandler 生成一元方法的 grpc.MethodDesc.Handler
func unaryHandler(name string, call func(PricingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PricingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PricingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PricingServiceDesc 服务描述
var PricingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PricingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Price", Handler: unaryHandler("Price", PricingServiceServer.Price)},
		{MethodName: "Greeks", Handler: unaryHandler("Greeks", PricingServiceServer.Greeks)},
		{MethodName: "ImpliedVol", Handler: unaryHandler("ImpliedVol", PricingServiceServer.ImpliedVol)},
		{MethodName: "GenerateScenarios", Handler: unaryHandler("GenerateScenarios", PricingServiceServer.GenerateScenarios)},
		{MethodName: "BatchPrice", Handler: unaryHandler("BatchPrice", PricingServiceServer.BatchPrice)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quantpricing/v1/pricing.proto",
}

// PricingServiceClient 客户端
type PricingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPricingServiceClient 创建客户端
func NewPricingServiceClient(cc grpc.ClientConnInterface) *PricingServiceClient {
	return &PricingServiceClient{cc: cc}
}

func (c *PricingServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PricingServiceClient) Price(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Price", in, opts...)
}

func (c *PricingServiceClient) Greeks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Greeks", in, opts...)
}

func (c *PricingServiceClient) ImpliedVol(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ImpliedVol", in, opts...)
}

func (c *PricingServiceClient) GenerateScenarios(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GenerateScenarios", in, opts...)
}

func (c *PricingServiceClient) BatchPrice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "BatchPrice", in, opts...)
}
