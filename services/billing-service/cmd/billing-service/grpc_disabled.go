//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/glowbook/glowbook/libs/db"
)

// The entitlements gRPC server needs generated stubs; build with
// -tags protogen after running protoc to enable it.
func startGrpcServer(_ context.Context, logger *slog.Logger, _ *db.Pool) error {
	logger.Info("grpc server disabled (build without protogen tag)")
	return nil
}
