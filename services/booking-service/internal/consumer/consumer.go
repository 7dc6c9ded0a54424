// Package consumer runs the Kafka readers that keep this service's
// read models current: stylist timezones and service durations from the
// stylist service, entitlements from billing.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/glowbook/glowbook/libs/kafkax"
	"github.com/glowbook/glowbook/services/booking-service/internal/inbox"
	"github.com/glowbook/glowbook/services/booking-service/internal/storage"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   *inbox.Repository
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handler(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}

// StylistProfileUpdated mirrors the stylist service's profile event; only
// the fields this service consumes are decoded.
type StylistProfileUpdated struct {
	StylistID string `json:"stylist_id"`
	Timezone  string `json:"timezone"`
}

// ServiceUpserted mirrors the stylist service's catalog event.
type ServiceUpserted struct {
	StylistID       string `json:"stylist_id"`
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ServiceDeleted struct {
	StylistID string `json:"stylist_id"`
	ServiceID string `json:"service_id"`
}

// SubscriptionChanged mirrors the billing service's entitlement events.
type SubscriptionChanged struct {
	StylistID              string `json:"stylist_id"`
	Tier                   string `json:"tier"`
	MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
}

// ProfileHandler applies stylist.profile.updated.v1 to the settings
// replica.
func ProfileHandler(replicas *storage.ReplicaRepository) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt StylistProfileUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.StylistID == "" || evt.Timezone == "" {
			return nil
		}
		return replicas.UpsertStylistSettings(ctx, evt.StylistID, evt.Timezone)
	}
}

// CatalogUpsertHandler applies stylist.service.upserted.v1 to the
// service catalog replica.
func CatalogUpsertHandler(replicas *storage.ReplicaRepository) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt ServiceUpserted
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.StylistID == "" || evt.ServiceID == "" {
			return nil
		}
		return replicas.UpsertCatalogService(ctx, evt.StylistID, evt.ServiceID, evt.Name, evt.DurationMinutes)
	}
}

// CatalogDeleteHandler applies stylist.service.deleted.v1.
func CatalogDeleteHandler(replicas *storage.ReplicaRepository) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt ServiceDeleted
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.StylistID == "" || evt.ServiceID == "" {
			return nil
		}
		return replicas.DeleteCatalogService(ctx, evt.StylistID, evt.ServiceID)
	}
}

// EntitlementsHandler applies billing subscription events to the
// entitlements replica.
func EntitlementsHandler(replicas *storage.ReplicaRepository) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt SubscriptionChanged
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.StylistID == "" {
			return nil
		}
		return replicas.UpsertEntitlements(ctx, evt.StylistID, evt.Tier, evt.MaxMonthlyAppointments)
	}
}
