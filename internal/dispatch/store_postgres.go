package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"agent-demo-webhooks/internal/common/database"
)

const (
	queryDemoByConversation = `
		SELECT id, name, COALESCE(user_id, '')
		FROM demos
		WHERE tavus_conversation_id = $1
		LIMIT 1`

	queryVideoByTitle = `
		SELECT id, demo_id, title, storage_path
		FROM demo_videos
		WHERE demo_id = $1 AND LOWER(title) = LOWER($2)
		ORDER BY created_at DESC
		LIMIT 1`

	insertProcessedEvent = `
		INSERT INTO processed_webhook_events (event_id, event_type, conversation_id, tool_name, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id) DO NOTHING`

	insertShowcase = `
		INSERT INTO video_showcase_data (demo_id, conversation_id, video_id, video_title, shown_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertObjective = `
		INSERT INTO conversation_objectives (conversation_id, demo_id, objective_name, output_variables, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
)

// PostgresStore implements Store on the demo database.
type PostgresStore struct {
	db *database.PostgresClient
}

func NewPostgresStore(db *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindDemoByConversation(ctx context.Context, conversationID string) (*Demo, error) {
	var demo Demo
	err := s.db.QueryRow(ctx, queryDemoByConversation, conversationID).Scan(&demo.ID, &demo.Name, &demo.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query demo: %w", err)
	}
	return &demo, nil
}

func (s *PostgresStore) FindVideoByTitle(ctx context.Context, demoID, title string) (*Video, error) {
	var v Video
	err := s.db.QueryRow(ctx, queryVideoByTitle, demoID, title).Scan(&v.ID, &v.DemoID, &v.Title, &v.StoragePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query video: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) MarkEventProcessed(ctx context.Context, ev ProcessedEvent) (bool, error) {
	res, err := s.db.Exec(ctx, insertProcessedEvent, ev.EventID, ev.EventType, nullString(ev.ConversationID), nullString(ev.ToolName))
	if err != nil {
		return false, fmt.Errorf("insert processed event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) RecordVideoShown(ctx context.Context, rec ShowcaseRecord) error {
	_, err := s.db.Exec(ctx, insertShowcase, rec.DemoID, nullString(rec.ConversationID), rec.VideoID, rec.VideoTitle, rec.ShownAt)
	if err != nil {
		return fmt.Errorf("insert showcase: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveObjective(ctx context.Context, obj Objective) error {
	output := obj.OutputVariables
	if output == nil {
		output = map[string]interface{}{}
	}
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output variables: %w", err)
	}

	_, err = s.db.Exec(ctx, insertObjective,
		nullString(obj.ConversationID), nullString(obj.DemoID), obj.ObjectiveName, payload, obj.EventType)
	if err != nil {
		return fmt.Errorf("insert objective: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
