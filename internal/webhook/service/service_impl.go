package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/observability/logger"
	"github.com/smallbiznis/storesync/internal/observability/metrics"
	"github.com/smallbiznis/storesync/internal/observability/tracing"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/internal/webhook/domain"
	"github.com/smallbiznis/storesync/pkg/rls"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Repo    domain.Repository
	Tenants tenantdomain.Service
	Writer  ingestiondomain.Writer
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	secret  string
	repo    domain.Repository
	tenants tenantdomain.Service
	writer  ingestiondomain.Writer
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type handler func(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, payload []byte) error

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("webhook.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		secret:  strings.TrimSpace(p.Cfg.Source.WebhookSecret),
		repo:    p.Repo,
		tenants: p.Tenants,
		writer:  p.Writer,
		metrics: p.Metrics,
		tracer:  otel.Tracer("storesync/webhook"),
	}
}

func (s *Service) Receive(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	topic := domain.NormalizeTopic(req.Topic)

	ctx, span := s.tracer.Start(ctx, "webhook.receive", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(attribute.String("webhook.topic", topic))...)

	outcome, err := s.receive(ctx, topic, req)
	label := topic
	if _, ok := s.handlerFor(topic); !ok {
		label = "unsupported"
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "webhook rejected")
		s.record(ctx, label, outcomeLabel(err))
		return "", err
	}
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
	s.record(ctx, label, string(outcome))
	return outcome, nil
}

func (s *Service) receive(ctx context.Context, topic string, req domain.Request) (domain.Outcome, error) {
	if !verifySignature(s.secret, req.Payload, req.Signature) {
		s.log.Warn("webhook signature rejected", zap.String("topic", topic))
		return "", domain.ErrInvalidSignature
	}

	shopDomain, err := source.NormalizeShopDomain(req.ShopDomain)
	if err != nil {
		return "", err
	}

	apply, ok := s.handlerFor(topic)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedTopic, topic)
	}

	tenant, err := s.tenants.GetActiveByShopDomain(ctx, shopDomain)
	if err != nil {
		return "", err
	}

	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		eventID = deriveEventID(req.Payload)
	}
	if eventID == "" {
		return "", domain.ErrMissingEventID
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("topic", topic),
		zap.String("event_id", eventID),
	)

	outcome := domain.OutcomeProcessed
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(tenant.ID)); err != nil {
			return err
		}
		inserted, err := s.repo.InsertReceipt(ctx, tx, &domain.Receipt{
			ID:         s.genID.Generate(),
			TenantID:   tenant.ID,
			Topic:      topic,
			EventID:    eventID,
			ReceivedAt: s.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		if !inserted {
			outcome = domain.OutcomeDuplicate
			return nil
		}
		return apply(ctx, tx, tenant.ID, req.Payload)
	})
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		return "", err
	}

	if outcome == domain.OutcomeDuplicate {
		log.Info("duplicate webhook ignored")
	} else {
		log.Info("webhook processed")
	}
	return outcome, nil
}

func (s *Service) handlerFor(topic string) (handler, bool) {
	switch topic {
	case domain.TopicCustomersCreate, domain.TopicCustomersUpdate:
		return s.upsert(source.EntityCustomers), true
	case domain.TopicProductsCreate, domain.TopicProductsUpdate:
		return s.upsert(source.EntityProducts), true
	case domain.TopicOrdersCreate, domain.TopicOrdersUpdated:
		return s.upsert(source.EntityOrders), true
	case domain.TopicCheckoutsCreate:
		return s.appendEvent(domain.EventCheckoutStarted), true
	case domain.TopicCartsAbandoned:
		return s.appendEvent(domain.EventCartAbandoned), true
	default:
		return nil, false
	}
}

func (s *Service) upsert(entityType source.EntityType) handler {
	return func(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, payload []byte) error {
		_, err := s.writer.Write(ctx, tx, tenantID, entityType, payload)
		return err
	}
}

func (s *Service) appendEvent(eventType domain.EventType) handler {
	return func(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, payload []byte) error {
		event, err := source.DecodeEvent(payload)
		if err != nil {
			return err
		}
		customerID, err := s.writer.ResolveCustomerID(ctx, tx, tenantID, event.CustomerExternalID)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}

		externalRef := event.Token
		if eventType == domain.EventCheckoutStarted && event.ID != "" {
			externalRef = event.ID
		}
		if externalRef == "" {
			externalRef = event.ID
		}

		now := s.clock.Now()
		occurredAt := now
		switch {
		case event.SourceUpdatedAt != nil:
			occurredAt = *event.SourceUpdatedAt
		case event.SourceCreatedAt != nil:
			occurredAt = *event.SourceCreatedAt
		}

		return s.repo.InsertCustomEvent(ctx, tx, &domain.CustomEvent{
			ID:          s.genID.Generate(),
			TenantID:    tenantID,
			CustomerID:  customerID,
			EventType:   eventType,
			ExternalRef: externalRef,
			Payload:     datatypes.JSON(payload),
			OccurredAt:  occurredAt,
			CreatedAt:   now,
		})
	}
}

func (s *Service) record(ctx context.Context, topic, outcome string) {
	metrics.Sync().IncWebhookEvent(topic, outcome)
	s.metrics.RecordWebhookEvent(ctx, topic, outcome)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, tenantdomain.ErrTenantNotFound):
		return "unknown_tenant"
	case errors.Is(err, domain.ErrUnsupportedTopic):
		return "unsupported_topic"
	case errors.Is(err, source.ErrInvalidShopDomain),
		errors.Is(err, domain.ErrMissingEventID),
		errors.Is(err, source.ErrInvalidRecord),
		errors.Is(err, source.ErrInvalidDecimal):
		return "invalid_payload"
	default:
		return "error"
	}
}

// deriveEventID falls back to the payload identity when the delivery header
// is missing: id (or token) plus updated_at when present.
func deriveEventID(payload []byte) string {
	var body struct {
		ID        json.RawMessage `json:"id"`
		Token     string          `json:"token"`
		UpdatedAt string          `json:"updated_at"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}

	key := strings.Trim(strings.TrimSpace(string(body.ID)), `"`)
	if key == "null" {
		key = ""
	}
	if key == "" {
		key = strings.TrimSpace(body.Token)
	}
	if key == "" {
		return ""
	}
	if updatedAt := strings.TrimSpace(body.UpdatedAt); updatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			updatedAt = parsed.UTC().Format(time.RFC3339)
		}
		key += "@" + updatedAt
	}
	return key
}
