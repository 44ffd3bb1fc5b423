package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const deviceIDKey ctxKey = "deviceID"

// deviceIDFromContext returns the device id placed by loggingInterceptor.
func deviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey).(string)
	return id
}

func deviceIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.DeviceIDHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

// loggingInterceptor stores the caller's device id in the context and logs
// every call with its outcome and duration.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	device := deviceIDFromMetadata(ctx)
	ctx = context.WithValue(ctx, deviceIDKey, device)

	start := time.Now()
	resp, err := handler(ctx, req)

	args := []any{
		"method", info.FullMethod,
		"device", device,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	}
	if err != nil {
		s.logger.Warn(ctx, "rpc failed", append(args, "error", err.Error())...)
	} else {
		s.logger.Debug(ctx, "rpc", args...)
	}
	return resp, err
}
