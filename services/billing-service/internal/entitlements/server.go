//go:build protogen

package entitlements

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"

	entitlementsv1 "github.com/glowbook/glowbook/protos/gen/entitlements/v1"
	"github.com/glowbook/glowbook/services/billing-service/internal/storage"
)

type server struct {
	entitlementsv1.UnimplementedEntitlementsServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	entitlementsv1.RegisterEntitlementsServiceServer(grpcServer, &server{repo: repo})
}

func (s *server) GetEntitlements(ctx context.Context, req *entitlementsv1.EntitlementsRequest) (*entitlementsv1.EntitlementsResponse, error) {
	limits := LimitsForTier("free")
	if s.repo != nil && req.GetStylistId() != "" {
		sub, err := s.repo.GetSubscription(ctx, req.GetStylistId())
		if err == nil && sub.Status == "active" {
			limits = LimitsForTier(sub.Tier)
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			// Repo errors degrade to free tier; the response stays stable.
			_ = err
		}
	}
	return &entitlementsv1.EntitlementsResponse{
		Tier:                   limits.Tier,
		MaxServices:            limits.MaxServices,
		MaxMonthlyAppointments: limits.MaxMonthlyAppointments,
	}, nil
}
