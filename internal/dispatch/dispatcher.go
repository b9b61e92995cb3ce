// Package dispatch performs the side effects of a parsed webhook tool call:
// signed video URLs, realtime broadcasts to the demo UI, and persistence of
// idempotency, showcase and objective data.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "agent-demo-webhooks/internal/common/errors"
	"agent-demo-webhooks/internal/common/logger"
	"agent-demo-webhooks/internal/common/metrics"
	"agent-demo-webhooks/internal/toolcall"
)

const (
	MsgDuplicate    = "Event already processed."
	MsgNoTool       = "No actionable tool call."
	MsgObjectiveAck = "Objective recorded."
)

// eventNamespace scopes idempotency keys generated by this service.
var eventNamespace = uuid.MustParse("6f1c7a52-3d0e-5b8e-9a4c-2f7d1e0b9c13")

type Config struct {
	SignedURLTTL  time.Duration
	ChannelPrefix string
}

// Dependencies groups the collaborators. Store, Signer and Broadcaster are
// required; the rest may be nil.
type Dependencies struct {
	Store       Store
	Signer      URLSigner
	Broadcaster Broadcaster
	Cache       DemoCache
	Notifier    LeadNotifier
	Indexer     EventIndexer
}

type Dispatcher struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
	now    func() time.Time
}

func New(cfg *Config, deps Dependencies, log logger.Logger) *Dispatcher {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "demo-"
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return &Dispatcher{
		config: cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		now:    time.Now,
	}
}

// IdempotencyKey derives a stable event id from the event type, the
// conversation and the raw body digest.
func IdempotencyKey(eventType, conversationID string, rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	name := eventType + "\x00" + conversationID + "\x00" + hex.EncodeToString(sum[:])
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// IsObjectiveEvent reports whether eventType carries objective output.
func IsObjectiveEvent(eventType string) bool {
	switch toolcall.NormalizeEventType(eventType) {
	case "application_objective_completed", "conversation_objective_completed":
		return true
	}
	return false
}

// ChannelFor returns the realtime channel of a demo.
func (d *Dispatcher) ChannelFor(demoID string) string {
	return d.config.ChannelPrefix + demoID
}

// Dispatch acts on req. Returned errors are StandardErrors describing a
// user-visible outcome; the handler maps them to a response body.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	eventType := req.Event.EventType()
	convID := req.Event.ConversationID()
	tool := string(req.Call.ToolName)

	log := d.logger.WithFields(map[string]interface{}{
		"requestId":      req.RequestID,
		"eventType":      eventType,
		"conversationId": convID,
	})

	objective := IsObjectiveEvent(eventType)
	if !objective && (!req.Call.Found() || !req.Call.IsCanonical()) {
		if req.Call.Found() {
			log.Info("Ignoring non-canonical tool", map[string]interface{}{"tool": tool})
		}
		d.record(ctx, req, "", "ignored", MsgNoTool)
		return &Result{Message: MsgNoTool}, nil
	}

	eventID := IdempotencyKey(eventType, convID, req.RawBody)
	fresh, err := d.deps.Store.MarkEventProcessed(ctx, ProcessedEvent{
		EventID:        eventID,
		EventType:      eventType,
		ConversationID: convID,
		ToolName:       tool,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("processed_webhook_events", err)
	}
	if !fresh {
		d.record(ctx, req, "", "duplicate", MsgDuplicate)
		return nil, apperrors.NewDuplicateEventError(eventID)
	}

	var (
		demoID string
		result *Result
	)
	switch {
	case objective:
		demoID, result, err = d.handleObjective(ctx, req, log)
	case req.Call.ToolName == toolcall.FetchVideo:
		demoID, result, err = d.handleFetchVideo(ctx, req, log)
	default:
		demoID, result, err = d.handleControl(ctx, req, log)
	}

	if err != nil {
		stdErr := apperrors.Normalize(err)
		d.record(ctx, req, demoID, string(stdErr.Code), stdErr.Message)
		return nil, err
	}
	d.record(ctx, req, demoID, "received", result.Message)
	return result, nil
}

func (d *Dispatcher) handleObjective(ctx context.Context, req Request, log logger.Logger) (string, *Result, error) {
	data := req.Event.Data()
	name, _ := data["objective_name"].(string)
	output, _ := data["output_variables"].(map[string]interface{})

	obj := Objective{
		ConversationID:  req.Event.ConversationID(),
		ObjectiveName:   name,
		OutputVariables: output,
		EventType:       req.Event.EventType(),
	}
	if demo, err := d.lookupDemo(ctx, obj.ConversationID); err == nil {
		obj.DemoID = demo.ID
	} else if !apperrors.Is(err, apperrors.ErrCodeDemoNotFound) {
		log.Warn("Demo lookup failed for objective", map[string]interface{}{"error": err})
	}

	if err := d.deps.Store.SaveObjective(ctx, obj); err != nil {
		return obj.DemoID, nil, apperrors.NewPersistenceFailedError("conversation_objectives", err)
	}
	log.Info("Objective recorded", map[string]interface{}{"objective": name})
	return obj.DemoID, &Result{Received: true, Message: MsgObjectiveAck}, nil
}

func (d *Dispatcher) handleFetchVideo(ctx context.Context, req Request, log logger.Logger) (string, *Result, error) {
	title, ok := toolcall.TitleFromArgs(req.Call.Args)
	if !ok {
		return "", nil, apperrors.NewInvalidVideoTitleError()
	}

	demo, err := d.lookupDemo(ctx, req.Event.ConversationID())
	if err != nil {
		return "", nil, err
	}

	video, err := d.deps.Store.FindVideoByTitle(ctx, demo.ID, title)
	if errors.Is(err, ErrNotFound) {
		return demo.ID, nil, apperrors.NewVideoNotFoundError(title)
	}
	if err != nil {
		return demo.ID, nil, apperrors.NewLookupFailedError("demo_videos", err)
	}

	url, err := d.deps.Signer.SignedURL(ctx, video.StoragePath, d.config.SignedURLTTL)
	if err != nil || url == "" {
		return demo.ID, nil, apperrors.NewSignedURLFailedError(video.StoragePath, err)
	}

	channel := d.ChannelFor(demo.ID)
	msg := Message{Type: string(toolcall.PlayVideo), URL: url, Title: video.Title}
	if err := d.deps.Broadcaster.Broadcast(ctx, channel, msg); err != nil {
		return demo.ID, nil, apperrors.NewBroadcastFailedError(channel, err)
	}

	rec := ShowcaseRecord{
		DemoID:         demo.ID,
		ConversationID: req.Event.ConversationID(),
		VideoID:        video.ID,
		VideoTitle:     video.Title,
		ShownAt:        d.now().UTC(),
	}
	if err := d.deps.Store.RecordVideoShown(ctx, rec); err != nil {
		log.Warn("Failed to record video showcase", map[string]interface{}{
			"videoId": video.ID,
			"error":   err,
		})
	}

	log.Info("Video dispatched", map[string]interface{}{
		"demoId":  demo.ID,
		"videoId": video.ID,
		"title":   video.Title,
	})
	return demo.ID, &Result{Received: true}, nil
}

func (d *Dispatcher) handleControl(ctx context.Context, req Request, log logger.Logger) (string, *Result, error) {
	demo, err := d.lookupDemo(ctx, req.Event.ConversationID())
	if err != nil {
		return "", nil, err
	}

	channel := d.ChannelFor(demo.ID)
	if err := d.deps.Broadcaster.Broadcast(ctx, channel, Message{Type: string(req.Call.ToolName)}); err != nil {
		return demo.ID, nil, apperrors.NewBroadcastFailedError(channel, err)
	}

	if req.Call.ToolName == toolcall.ShowTrialCTA && d.deps.Notifier != nil {
		alert := LeadAlert{
			DemoID:         demo.ID,
			DemoName:       demo.Name,
			ConversationID: req.Event.ConversationID(),
			RequestID:      req.RequestID,
		}
		if err := d.deps.Notifier.NotifyTrialCTA(ctx, alert); err != nil {
			log.Warn("Lead notification failed", map[string]interface{}{
				"error": apperrors.NewNotificationSendFailedError("sns", err),
			})
		}
	}

	log.Info("Control command dispatched", map[string]interface{}{
		"demoId": demo.ID,
		"tool":   string(req.Call.ToolName),
	})
	return demo.ID, &Result{Received: true}, nil
}

// lookupDemo resolves the demo of a conversation through the cache.
func (d *Dispatcher) lookupDemo(ctx context.Context, conversationID string) (*Demo, error) {
	if conversationID == "" {
		return nil, apperrors.NewDemoNotFoundError(conversationID)
	}

	if d.deps.Cache != nil {
		demo, err := d.deps.Cache.Get(ctx, conversationID)
		if err != nil {
			d.logger.Debug("Demo cache read failed", map[string]interface{}{"error": err})
		}
		if demo != nil {
			return demo, nil
		}
	}

	demo, err := d.deps.Store.FindDemoByConversation(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NewDemoNotFoundError(conversationID)
	}
	if err != nil {
		return nil, apperrors.NewLookupFailedError("demos", err)
	}

	if d.deps.Cache != nil {
		if err := d.deps.Cache.Set(ctx, conversationID, demo); err != nil {
			d.logger.Debug("Demo cache write failed", map[string]interface{}{"error": err})
		}
	}
	return demo, nil
}

// record updates counters and indexes the outcome. Indexing is best effort.
func (d *Dispatcher) record(ctx context.Context, req Request, demoID, outcome, message string) {
	tool := string(req.Call.ToolName)
	if tool == "" {
		tool = "none"
	}
	metrics.DispatchOutcomes.WithLabelValues(tool, outcome).Inc()

	if d.deps.Indexer == nil {
		return
	}
	doc := IndexedEvent{
		EventID:        IdempotencyKey(req.Event.EventType(), req.Event.ConversationID(), req.RawBody),
		RequestID:      req.RequestID,
		EventType:      req.Event.EventType(),
		ConversationID: req.Event.ConversationID(),
		DemoID:         demoID,
		ToolName:       string(req.Call.ToolName),
		ToolArgs:       req.Call.Args,
		Outcome:        outcome,
		Message:        message,
		ReceivedAt:     d.now().UTC(),
	}
	if err := d.deps.Indexer.IndexEvent(ctx, doc); err != nil {
		d.logger.Warn("Failed to index webhook event", map[string]interface{}{
			"requestId": req.RequestID,
			"error":     err,
		})
	}
}
