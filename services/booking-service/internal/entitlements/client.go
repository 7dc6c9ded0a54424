//go:build protogen

package entitlements

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/glowbook/glowbook/libs/grpcx"
	entitlementsv1 "github.com/glowbook/glowbook/protos/gen/entitlements/v1"
)

// Client calls the billing service's entitlements API. Used for
// debugging drift between the local replica and billing's source of
// truth; the booking hot path reads the replica only.
type Client struct {
	conn   *grpc.ClientConn
	client entitlementsv1.EntitlementsServiceClient
}

func NewClient(addr string) (*Client, error) {
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:   conn,
		client: entitlementsv1.NewEntitlementsServiceClient(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) GetEntitlements(ctx context.Context, stylistID string) (*entitlementsv1.EntitlementsResponse, error) {
	return c.client.GetEntitlements(ctx, &entitlementsv1.EntitlementsRequest{
		StylistId: stylistID,
	})
}
