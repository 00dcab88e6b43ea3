package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/service"
)

type Server struct {
	avail *service.AvailabilityService
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

func NewServer(avail *service.AvailabilityService, loc *time.Location, log *zap.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{avail: avail, loc: loc, now: time.Now, log: log}
}

// NewGRPCServer builds a gRPC server with the availability service, the
// standard health service and reflection registered.
func NewGRPCServer(srv *Server) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(srv.log)))
	RegisterAvailabilityServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)
	return gs, hs
}

func (s *Server) GetGrid(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	venueName := f["centro"].GetStringValue()
	courtType := f["tipo_cancha"].GetStringValue()
	if venueName == "" || courtType == "" {
		return nil, status.Error(codes.InvalidArgument, "centro and tipo_cancha are required")
	}
	date, err := s.date(f, "fecha")
	if err != nil {
		return nil, err
	}

	grid, err := s.avail.Grid(ctx, venueName, courtType, date)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(grid)
}

func (s *Server) GetOccupancy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	from, err := s.date(f, "desde")
	if err != nil {
		return nil, err
	}
	to, err := s.date(f, "hasta")
	if err != nil {
		return nil, err
	}

	stats, err := s.avail.Occupancy(ctx, from, to, nil)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(map[string]any{"centros": stats})
}

// date reads a YYYY-MM-DD field, defaulting to today in the venue zone.
func (s *Server) date(f map[string]*structpb.Value, key string) (calendar.Date, error) {
	raw := f[key].GetStringValue()
	if raw == "" {
		return calendar.DateOf(s.now().In(s.loc)), nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, status.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	return d, nil
}

// toStruct converts a JSON-encodable value into a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func (s *Server) toStatus(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.log.Error("availability query failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Debug("grpc call", fields...)
		return resp, err
	}
}
