package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "agent-demo-webhooks/internal/common/errors"
	"agent-demo-webhooks/internal/common/logger"
	"agent-demo-webhooks/internal/toolcall"
)

// ==========================
// Test Doubles
// ==========================

type memoryStore struct {
	mu         sync.Mutex
	demos      map[string]*Demo
	videos     map[string]*Video
	processed  map[string]bool
	showcases  []ShowcaseRecord
	objectives []Objective
	lookupErr  error
	markErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		demos: map[string]*Demo{
			"conv-1": {ID: "demo-1", Name: "Acme Analytics"},
		},
		videos: map[string]*Video{
			"strategic planning": {ID: "vid-1", DemoID: "demo-1", Title: "Strategic Planning", StoragePath: "demo-1/strategic.mp4"},
		},
		processed: map[string]bool{},
	}
}

func (s *memoryStore) FindDemoByConversation(_ context.Context, conversationID string) (*Demo, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if d, ok := s.demos[conversationID]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}

func (s *memoryStore) FindVideoByTitle(_ context.Context, demoID, title string) (*Video, error) {
	for key, v := range s.videos {
		if v.DemoID == demoID && key == toLower(title) {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func (s *memoryStore) MarkEventProcessed(_ context.Context, ev ProcessedEvent) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[ev.EventID] {
		return false, nil
	}
	s.processed[ev.EventID] = true
	return true, nil
}

func (s *memoryStore) RecordVideoShown(_ context.Context, rec ShowcaseRecord) error {
	s.showcases = append(s.showcases, rec)
	return nil
}

func (s *memoryStore) SaveObjective(_ context.Context, obj Objective) error {
	s.objectives = append(s.objectives, obj)
	return nil
}

type fakeSigner struct {
	err   error
	paths []string
}

func (f *fakeSigner) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	f.paths = append(f.paths, objectPath)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + objectPath + "?ttl=" + ttl.String(), nil
}

type sentMessage struct {
	channel string
	msg     Message
}

type fakeBroadcaster struct {
	err  error
	sent []sentMessage
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, channel string, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{channel: channel, msg: msg})
	return nil
}

type fakeNotifier struct{ alerts []LeadAlert }

func (f *fakeNotifier) NotifyTrialCTA(_ context.Context, alert LeadAlert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeIndexer struct{ docs []IndexedEvent }

func (f *fakeIndexer) IndexEvent(_ context.Context, ev IndexedEvent) error {
	f.docs = append(f.docs, ev)
	return nil
}

type fixture struct {
	store       *memoryStore
	signer      *fakeSigner
	broadcaster *fakeBroadcaster
	notifier    *fakeNotifier
	indexer     *fakeIndexer
	dispatcher  *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		store:       newMemoryStore(),
		signer:      &fakeSigner{},
		broadcaster: &fakeBroadcaster{},
		notifier:    &fakeNotifier{},
		indexer:     &fakeIndexer{},
	}
	f.dispatcher = New(&Config{SignedURLTTL: time.Hour}, Dependencies{
		Store:       f.store,
		Signer:      f.signer,
		Broadcaster: f.broadcaster,
		Notifier:    f.notifier,
		Indexer:     f.indexer,
	}, logger.NewTestLogger(t))
	return f
}

func toolRequest(conversationID string, call toolcall.ParsedToolCall, body string) Request {
	return Request{
		RequestID: "req-1",
		Event: toolcall.Event{
			"event_type":      "conversation.toolcall",
			"conversation_id": conversationID,
		},
		Call:    call,
		RawBody: []byte(body),
	}
}

func fetch(title string) toolcall.ParsedToolCall {
	return toolcall.ParsedToolCall{ToolName: toolcall.FetchVideo, Args: map[string]interface{}{"title": title}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestDispatch_FetchVideo_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.dispatcher.Dispatch(context.Background(), toolRequest("conv-1", fetch("strategic planning"), `{"a":1}`))
	require.NoError(t, err)
	assert.True(t, res.Received)

	require.Len(t, f.broadcaster.sent, 1)
	assert.Equal(t, "demo-demo-1", f.broadcaster.sent[0].channel)
	assert.Equal(t, Message{
		Type:  "play_video",
		URL:   "https://cdn.example.com/demo-1/strategic.mp4?ttl=1h0m0s",
		Title: "Strategic Planning",
	}, f.broadcaster.sent[0].msg)

	require.Len(t, f.store.showcases, 1)
	assert.Equal(t, "vid-1", f.store.showcases[0].VideoID)
	assert.Equal(t, "conv-1", f.store.showcases[0].ConversationID)

	require.Len(t, f.indexer.docs, 1)
	assert.Equal(t, "received", f.indexer.docs[0].Outcome)
	assert.Equal(t, "demo-1", f.indexer.docs[0].DemoID)
}

func TestDispatch_FetchVideo_Failures(t *testing.T) {
	tests := []struct {
		name    string
		convID  string
		call    toolcall.ParsedToolCall
		setup   func(f *fixture)
		code    apperrors.ErrorCode
		message string
	}{
		{
			name:    "missing title",
			convID:  "conv-1",
			call:    toolcall.ParsedToolCall{ToolName: toolcall.FetchVideo},
			code:    apperrors.ErrCodeInvalidVideoTitle,
			message: "Invalid or missing video title.",
		},
		{
			name:    "blank title",
			convID:  "conv-1",
			call:    fetch("   "),
			code:    apperrors.ErrCodeInvalidVideoTitle,
			message: "Invalid or missing video title.",
		},
		{
			name:    "unknown conversation",
			convID:  "conv-404",
			call:    fetch("Strategic Planning"),
			code:    apperrors.ErrCodeDemoNotFound,
			message: "Demo not found for conversation.",
		},
		{
			name:    "no conversation id",
			convID:  "",
			call:    fetch("Strategic Planning"),
			code:    apperrors.ErrCodeDemoNotFound,
			message: "Demo not found for conversation.",
		},
		{
			name:    "unknown video",
			convID:  "conv-1",
			call:    fetch("Quarterly Review"),
			code:    apperrors.ErrCodeVideoNotFound,
			message: "Video not found.",
		},
		{
			name:    "signer failure",
			convID:  "conv-1",
			call:    fetch("Strategic Planning"),
			setup:   func(f *fixture) { f.signer.err = errors.New("minio unavailable") },
			code:    apperrors.ErrCodeSignedURLFailed,
			message: "Could not generate video URL.",
		},
		{
			name:   "lookup failure",
			convID: "conv-1",
			call:   fetch("Strategic Planning"),
			setup:  func(f *fixture) { f.store.lookupErr = errors.New("connection reset") },
			code:   apperrors.ErrCodeLookupFailed,
		},
		{
			name:   "broadcast failure",
			convID: "conv-1",
			call:   fetch("Strategic Planning"),
			setup:  func(f *fixture) { f.broadcaster.err = errors.New("redis down") },
			code:   apperrors.ErrCodeBroadcastFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			res, err := f.dispatcher.Dispatch(context.Background(), toolRequest(tt.convID, tt.call, tt.name))
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperrors.Normalize(err).Message)
			}
			assert.Empty(t, f.store.showcases)
			require.Len(t, f.indexer.docs, 1)
			assert.Equal(t, string(tt.code), f.indexer.docs[0].Outcome)
		})
	}
}

func TestDispatch_ControlTools(t *testing.T) {
	for _, tool := range []toolcall.ToolName{toolcall.PauseVideo, toolcall.PlayVideo, toolcall.NextVideo, toolcall.CloseVideo} {
		t.Run(string(tool), func(t *testing.T) {
			f := newFixture(t)
			res, err := f.dispatcher.Dispatch(context.Background(),
				toolRequest("conv-1", toolcall.ParsedToolCall{ToolName: tool, Args: map[string]interface{}{}}, string(tool)))
			require.NoError(t, err)
			assert.True(t, res.Received)
			require.Len(t, f.broadcaster.sent, 1)
			assert.Equal(t, Message{Type: string(tool)}, f.broadcaster.sent[0].msg)
			assert.Empty(t, f.notifier.alerts)
			assert.Empty(t, f.signer.paths)
		})
	}
}

func TestDispatch_TrialCTANotifiesSales(t *testing.T) {
	f := newFixture(t)

	res, err := f.dispatcher.Dispatch(context.Background(),
		toolRequest("conv-1", toolcall.ParsedToolCall{ToolName: toolcall.ShowTrialCTA, Args: map[string]interface{}{}}, "cta"))
	require.NoError(t, err)
	assert.True(t, res.Received)

	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, LeadAlert{DemoID: "demo-1", DemoName: "Acme Analytics", ConversationID: "conv-1", RequestID: "req-1"}, f.notifier.alerts[0])
	assert.Equal(t, Message{Type: "show_trial_cta"}, f.broadcaster.sent[0].msg)
}

func TestDispatch_NoActionableTool(t *testing.T) {
	f := newFixture(t)

	for _, call := range []toolcall.ParsedToolCall{
		{},
		{ToolName: "book_meeting", Args: map[string]interface{}{}},
	} {
		res, err := f.dispatcher.Dispatch(context.Background(), toolRequest("conv-1", call, "x"))
		require.NoError(t, err)
		assert.Equal(t, &Result{Message: MsgNoTool}, res)
	}
	assert.Empty(t, f.store.processed)
	assert.Empty(t, f.broadcaster.sent)
}

func TestDispatch_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	req := toolRequest("conv-1", toolcall.ParsedToolCall{ToolName: toolcall.PauseVideo, Args: map[string]interface{}{}}, `{"same":"body"}`)

	_, err := f.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)

	res, err := f.dispatcher.Dispatch(context.Background(), req)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDuplicateEvent))
	assert.Equal(t, MsgDuplicate, apperrors.Normalize(err).Message)
	assert.Len(t, f.broadcaster.sent, 1)
}

func TestDispatch_IdempotencyFailure(t *testing.T) {
	f := newFixture(t)
	f.store.markErr = errors.New("db down")

	_, err := f.dispatcher.Dispatch(context.Background(),
		toolRequest("conv-1", toolcall.ParsedToolCall{ToolName: toolcall.PauseVideo, Args: map[string]interface{}{}}, "x"))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePersistenceFailed))
	assert.Empty(t, f.broadcaster.sent)
}

func TestDispatch_Objective(t *testing.T) {
	f := newFixture(t)
	req := Request{
		RequestID: "req-9",
		Event: toolcall.Event{
			"event_type":      "application.objective_completed",
			"conversation_id": "conv-1",
			"data": map[string]interface{}{
				"objective_name":   "qualification",
				"output_variables": map[string]interface{}{"company_size": "50-200"},
			},
		},
		RawBody: []byte("objective"),
	}

	res, err := f.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &Result{Received: true, Message: MsgObjectiveAck}, res)

	require.Len(t, f.store.objectives, 1)
	assert.Equal(t, Objective{
		ConversationID:  "conv-1",
		DemoID:          "demo-1",
		ObjectiveName:   "qualification",
		OutputVariables: map[string]interface{}{"company_size": "50-200"},
		EventType:       "application.objective_completed",
	}, f.store.objectives[0])
}

func TestDispatch_ObjectiveWithoutDemo(t *testing.T) {
	f := newFixture(t)
	req := Request{
		Event: toolcall.Event{
			"event_type":      "conversation.objective.completed",
			"conversation_id": "conv-unknown",
			"data":            map[string]interface{}{"objective_name": "intro"},
		},
		RawBody: []byte("objective-2"),
	}

	_, err := f.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.store.objectives, 1)
	assert.Empty(t, f.store.objectives[0].DemoID)
}

func TestDispatch_UsesDemoCache(t *testing.T) {
	f := newFixture(t)
	cache := &mapCache{items: map[string]*Demo{}}
	f.dispatcher.deps.Cache = cache

	for _, body := range []string{"first", "second"} {
		_, err := f.dispatcher.Dispatch(context.Background(),
			toolRequest("conv-1", toolcall.ParsedToolCall{ToolName: toolcall.NextVideo, Args: map[string]interface{}{}}, body))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, cache.hits)
}

type mapCache struct {
	items map[string]*Demo
	sets  int
	hits  int
}

func (c *mapCache) Get(_ context.Context, id string) (*Demo, error) {
	if d, ok := c.items[id]; ok {
		c.hits++
		return d, nil
	}
	return nil, nil
}

func (c *mapCache) Set(_ context.Context, id string, d *Demo) error {
	c.sets++
	c.items[id] = d
	return nil
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("conversation.toolcall", "conv-1", []byte("body"))
	assert.Equal(t, a, IdempotencyKey("conversation.toolcall", "conv-1", []byte("body")))
	assert.NotEqual(t, a, IdempotencyKey("conversation.toolcall", "conv-2", []byte("body")))
	assert.NotEqual(t, a, IdempotencyKey("conversation.toolcall", "conv-1", []byte("body2")))
	assert.Len(t, a, 36)
}

func TestIsObjectiveEvent(t *testing.T) {
	assert.True(t, IsObjectiveEvent("application.objective_completed"))
	assert.True(t, IsObjectiveEvent("conversation.objective.completed"))
	assert.False(t, IsObjectiveEvent("conversation.toolcall"))
}
