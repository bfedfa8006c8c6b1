package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
)

// Server implements ReconcilerServer on top of the engine.
type Server struct {
	engine *matcher.Engine
}

// NewServer returns a Server bound to engine.
func NewServer(engine *matcher.Engine) *Server {
	return &Server{engine: engine}
}

// NewGRPCServer builds a grpc.Server with the Reconciler service and request
// logging installed.
func NewGRPCServer(engine *matcher.Engine) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logRequests))
	RegisterReconcilerServer(s, NewServer(engine))
	return s
}

func (s *Server) Suggest(ctx context.Context, in *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if in.GetValue() == 0 {
		return nil, status.Error(codes.InvalidArgument, "pending id is required")
	}
	suggestions, err := s.engine.Suggest(ctx, uint(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{
		"pending_id":  in.GetValue(),
		"suggestions": suggestions,
	})
}

func (s *Server) ConfirmMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pendingID, err := idField(in, "pending_id")
	if err != nil {
		return nil, err
	}
	productID, err := idField(in, "product_id")
	if err != nil {
		return nil, err
	}
	offer, err := s.engine.ConfirmMatch(ctx, pendingID, productID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(offer)
}

func (s *Server) Discard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pendingID, err := idField(in, "pending_id")
	if err != nil {
		return nil, err
	}
	reason := in.GetFields()["reason"].GetStringValue()
	if err := s.engine.Discard(ctx, pendingID, reason); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"status": "discarded"})
}

func idField(in *structpb.Struct, name string) (uint, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	n := v.GetNumberValue()
	if n <= 0 || n != math.Trunc(n) || n > math.MaxUint32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer", name)
	}
	return uint(n), nil
}

// toStruct converts v through its JSON form, so gRPC responses carry the
// same field names as the HTTP API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, matcher.ErrNotFound), errors.Is(err, matcher.ErrHistoryNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, matcher.ErrAlreadyResolved), errors.Is(err, matcher.ErrAlreadyReverted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, matcher.ErrSelfMergeRejected), errors.Is(err, matcher.ErrNotRevertible):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	logrus.WithError(err).Error("gRPC request failed")
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
}

func logRequests(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := logrus.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("gRPC request failed")
	} else {
		entry.Debug("gRPC request served")
	}
	return resp, err
}
