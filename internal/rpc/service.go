// Package rpc serves the matching workflow over gRPC. Messages use the
// protobuf well-known types so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "reconciler.v1.Reconciler"

const (
	suggestMethod      = "/" + serviceName + "/Suggest"
	confirmMatchMethod = "/" + serviceName + "/ConfirmMatch"
	discardMethod      = "/" + serviceName + "/Discard"
)

// ReconcilerServer is the server API for the Reconciler service.
type ReconcilerServer interface {
	// Suggest takes a pending listing id and returns {"pending_id", "suggestions"}.
	Suggest(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	// ConfirmMatch takes {"pending_id", "product_id"} and returns the offer.
	ConfirmMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Discard takes {"pending_id", "reason"}.
	Discard(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Reconciler service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReconcilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Suggest", Handler: suggestHandler},
		{MethodName: "ConfirmMatch", Handler: confirmMatchHandler},
		{MethodName: "Discard", Handler: discardHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reconciler/v1/reconciler.proto",
}

// RegisterReconcilerServer registers srv with s.
func RegisterReconcilerServer(s grpc.ServiceRegistrar, srv ReconcilerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func suggestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).Suggest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: suggestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReconcilerServer).Suggest(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func confirmMatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).ConfirmMatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: confirmMatchMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReconcilerServer).ConfirmMatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func discardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).Discard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: discardMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReconcilerServer).Discard(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the Reconciler service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Suggest returns the ranked suggestions for a pending listing.
func (c *Client) Suggest(ctx context.Context, pendingID uint64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, suggestMethod, wrapperspb.UInt64(pendingID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmMatch links a pending listing to a product.
func (c *Client) ConfirmMatch(ctx context.Context, pendingID, productID uint64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"pending_id": pendingID,
		"product_id": productID,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, confirmMatchMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Discard rejects a pending listing.
func (c *Client) Discard(ctx context.Context, pendingID uint64, reason string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]interface{}{
		"pending_id": pendingID,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, discardMethod, in, new(structpb.Struct), opts...)
}
