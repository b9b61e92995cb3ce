// Package webhook receives provider webhook deliveries: it authenticates
// the raw body, validates the envelope, parses the tool call and hands it
// to the dispatcher.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "agent-demo-webhooks/internal/common/errors"
	"agent-demo-webhooks/internal/common/logger"
	"agent-demo-webhooks/internal/common/metrics"
	"agent-demo-webhooks/internal/common/observability"
	"agent-demo-webhooks/internal/common/validation"
	"agent-demo-webhooks/internal/dispatch"
	"agent-demo-webhooks/internal/toolcall"
)

// Path is where the provider delivers webhooks.
const Path = "/api/tavus-webhook"

const defaultMaxBodyBytes = 1 << 20

type Config struct {
	Secret       string
	MaxBodyBytes int64
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

type Handler struct {
	config     *Config
	parser     *toolcall.Parser
	dispatcher Dispatcher
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(cfg *Config, parser *toolcall.Parser, dispatcher Dispatcher, obs *observability.Observability, log logger.Logger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		config:     cfg,
		parser:     parser,
		dispatcher: dispatcher,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "webhook"}),
	}
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(Path, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	ctx, span := h.obs.StartSpan(r.Context(), "tavus.webhook",
		attribute.String("request.id", requestID),
	)
	defer span.End()

	log := h.logger.WithFields(map[string]interface{}{"requestId": requestID})
	outcome := h.handle(ctx, w, r, requestID, log)

	span.SetAttributes(attribute.String("webhook.outcome", outcome))
	if outcome != "received" && outcome != "message" {
		span.SetStatus(codes.Error, outcome)
	}
	metrics.WebhookRequests.WithLabelValues(outcome).Inc()
	metrics.WebhookDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	h.obs.RecordWebhookProcessed(ctx, outcome)
	h.obs.RecordWebhookDuration(ctx, time.Since(start), outcome)
}

// handle writes the response and returns the outcome label.
func (h *Handler) handle(ctx context.Context, w http.ResponseWriter, r *http.Request, requestID string, log logger.Logger) string {
	errHandler := apperrors.NewErrorHandler(log)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		apperrors.WriteJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "Method not allowed"})
		return "method_not_allowed"
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{"error": "Payload too large"})
			return "too_large"
		}
		errHandler.Respond(w, apperrors.NewInvalidPayloadError(err.Error()))
		return "invalid"
	}

	if !VerifySignature(body, SignatureFromHeader(r.Header), h.config.Secret) {
		errHandler.Respond(w, apperrors.NewUnauthorizedError("signature verification failed"))
		return "unauthorized"
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		details := "body is not a JSON object"
		if err != nil {
			details = err.Error()
		}
		errHandler.Respond(w, apperrors.NewInvalidPayloadError(details))
		return "invalid"
	}

	if res := validation.ValidateEnvelope(doc); !res.Valid {
		errHandler.Respond(w, apperrors.NewInvalidPayloadError(strings.Join(res.GetErrorMessages(), "; ")))
		return "invalid"
	}

	evt := toolcall.Event(doc)
	call := h.parser.Parse(evt)
	kind := toolcall.ClassifyEventType(evt.EventType())
	if call.Found() {
		metrics.ToolCallsParsed.WithLabelValues(string(call.ToolName), kind.String()).Inc()
	}

	log.Info("Webhook received", map[string]interface{}{
		"eventType":      evt.EventType(),
		"eventKind":      kind.String(),
		"conversationId": evt.ConversationID(),
		"tool":           string(call.ToolName),
	})

	result, err := h.dispatcher.Dispatch(ctx, dispatch.Request{
		RequestID: requestID,
		Event:     evt,
		Call:      call,
		RawBody:   body,
	})
	if err != nil {
		errHandler.Respond(w, err)
		return "message"
	}

	if result.Received {
		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"received": true})
		return "received"
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": result.Message})
	return "message"
}
