package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"custman/eventing"
	"custman/eventing/store"
	"custman/messaging"
)

func (s *SQLEventStore) LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error) {
	query := fmt.Sprintf("SELECT id, type, aggregate_id, aggregate_type, version, timestamp, payload, metadata FROM %s WHERE aggregate_id = ? AND version > ? ORDER BY version ASC", s.tableName)
	rows, err := s.db.Query(ctx, query, aggregateID, afterVersion)
	if err != nil {
		return nil, eventing.NewStoreFailedError("query events failed", err)
	}
	defer rows.Close()
	return s.scanEvents(rows)
}

func (s *SQLEventStore) StreamEvents(ctx context.Context, from time.Time) ([]eventing.Event, error) {
	query := fmt.Sprintf("SELECT id, type, aggregate_id, aggregate_type, version, timestamp, payload, metadata FROM %s WHERE timestamp >= ? ORDER BY timestamp ASC, version ASC", s.tableName)
	rows, err := s.db.Query(ctx, query, from)
	if err != nil {
		return nil, eventing.NewStoreFailedError("stream events failed", err)
	}
	defer rows.Close()
	return s.scanEvents(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

func (s *SQLEventStore) scanEvents(rows rowScanner) ([]eventing.Event, error) {
	var events []eventing.Event
	for rows.Next() {
		var (
			id, typ      string
			aggID        int64
			aggType      string
			ver          uint64
			ts           time.Time
			payloadJSON  string
			metadataJSON string
		)
		if err := rows.Scan(&id, &typ, &aggID, &aggType, &ver, &ts, &payloadJSON, &metadataJSON); err != nil {
			return nil, eventing.NewStoreFailedError("scan event row failed", err)
		}

		var payload map[string]any
		if payloadJSON != "" && payloadJSON != "null" {
			if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload for id=%s, type=%s: %w", id, typ, err)
			}
		}

		var metadata map[string]any
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata for id=%s, type=%s: %w", id, typ, err)
			}
		}
		events = append(events, eventing.Event{
			Message: messaging.Message{
				ID:        id,
				Type:      typ,
				Timestamp: ts,
				Payload:   payload,
				Metadata:  metadata,
			},
			AggregateID:   aggID,
			AggregateType: aggType,
			Version:       ver,
		})
	}
	return events, nil
}

// HasAggregate 检查聚合是否存在（实现 IAggregateInspector 接口）
func (s *SQLEventStore) HasAggregate(ctx context.Context, aggregateID int64) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE aggregate_id = ?", s.tableName)
	row := s.db.QueryRow(ctx, query, aggregateID)

	var count int64
	if err := row.Scan(&count); err != nil {
		return false, eventing.NewStoreFailedError("query aggregate existence failed", err)
	}
	return count > 0, nil
}

// GetAggregateVersion 获取聚合的当前版本（实现 IAggregateInspector 接口）
func (s *SQLEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	version, err := s.getCurrentVersion(ctx, s.db, aggregateID)
	if err != nil {
		return 0, eventing.NewStoreFailedError("query aggregate version failed", err)
	}
	return version, nil
}

// 编译期断言：SQLEventStore 满足事件存储接口约束。
var (
	_ store.IEventStore         = (*SQLEventStore)(nil)
	_ store.IAggregateInspector = (*SQLEventStore)(nil)
)
