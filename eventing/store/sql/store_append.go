package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"custman/eventing"
	log "custman/logging"
	"custman/storage/database"
)

// preparedEvent 预处理的事件数据（用于批量插入优化）
type preparedEvent struct {
	id            string
	typ           string
	aggregateType string
	version       uint64
	timestamp     time.Time
	payloadJSON   string
	metadataJSON  string
}

func (s *SQLEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return eventing.NewStoreFailedError("begin transaction failed", err)
	}
	defer tx.Rollback()
	if err := s.AppendEventsWithDB(ctx, tx, aggregateID, events, expectedVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eventing.NewStoreFailedError("commit transaction failed", err)
	}
	log.GetLogger().Debug(ctx, "events appended", log.Int64("aggregate_id", aggregateID), log.Int("event_count", len(events)))
	return nil
}

// AppendEventsWithDB 在调用方提供的事务/连接上追加事件
//
// 版本检查与插入必须处于同一事务内，乐观锁才有意义。
func (s *SQLEventStore) AppendEventsWithDB(ctx context.Context, db database.IDatabase, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	// 第一步：确定聚合类型
	aggregateType := ""
	for _, evt := range events {
		if evt.GetAggregateType() != "" {
			aggregateType = evt.GetAggregateType()
			break
		}
	}

	// 第二步：版本检查（必须在事务内）
	currentVersion, err := s.getCurrentVersion(ctx, db, aggregateID)
	if err != nil {
		return eventing.NewStoreFailedError("query current version failed", err)
	}
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	// 第三步：预先验证和序列化所有事件（减少数据库往返）
	prepared := make([]preparedEvent, 0, len(events))
	for idx, evt := range events {
		if evt.GetAggregateType() == "" {
			evt.SetAggregateType(aggregateType)
		} else if evt.GetAggregateType() != aggregateType {
			return eventing.NewInvalidEventError(evt.GetID(), evt.GetType(), "mixed aggregate types in append batch")
		}

		// 版本校验：批内版本必须从 expectedVersion+1 起连续递增
		expectedEventVersion := expectedVersion + uint64(idx) + 1
		if evt.GetVersion() != expectedEventVersion {
			return eventing.NewInvalidEventError(evt.GetID(), evt.GetType(),
				fmt.Sprintf("event version mismatch: expected %d, got %d", expectedEventVersion, evt.GetVersion()))
		}

		if err := evt.Validate(); err != nil {
			return eventing.NewInvalidEventError(evt.GetID(), evt.GetType(), err.Error())
		}

		payloadJSON, err := json.Marshal(evt.GetPayload())
		if err != nil {
			return &eventing.EventStoreError{Code: eventing.ErrCodeSerializeFailed, Message: "serialize payload failed", Cause: err, EventID: evt.GetID(), EventType: evt.GetType()}
		}
		metadataJSON, err := json.Marshal(evt.GetMetadata())
		if err != nil {
			return &eventing.EventStoreError{Code: eventing.ErrCodeSerializeFailed, Message: "serialize metadata failed", Cause: err, EventID: evt.GetID(), EventType: evt.GetType()}
		}

		prepared = append(prepared, preparedEvent{
			id:            evt.GetID(),
			typ:           evt.GetType(),
			aggregateType: evt.GetAggregateType(),
			version:       evt.GetVersion(),
			timestamp:     evt.GetTimestamp(),
			payloadJSON:   string(payloadJSON),
			metadataJSON:  string(metadataJSON),
		})
	}

	// 第四步：批量INSERT，将N次数据库往返降低到1次
	placeholders := make([]string, len(prepared))
	args := make([]interface{}, 0, len(prepared)*8)
	for i, p := range prepared {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			p.id, p.typ, aggregateID, p.aggregateType,
			p.version, p.timestamp, p.payloadJSON, p.metadataJSON,
		)
	}

	batchSQL := fmt.Sprintf(
		"INSERT INTO %s (id, type, aggregate_id, aggregate_type, version, timestamp, payload, metadata) VALUES %s",
		s.tableName,
		strings.Join(placeholders, ","),
	)

	if _, err := db.Exec(ctx, batchSQL, args...); err != nil {
		// 唯一索引冲突：另一个事务抢先写入了同版本事件
		if isDuplicateKeyError(err) {
			actual, verr := s.getCurrentVersion(ctx, db, aggregateID)
			if verr != nil {
				actual = expectedVersion + 1
			}
			return eventing.NewConcurrencyError(aggregateID, expectedVersion, actual)
		}
		return eventing.NewStoreFailedError("insert events failed", err)
	}
	return nil
}

func (s *SQLEventStore) getCurrentVersion(ctx context.Context, db database.IDatabase, aggregateID int64) (uint64, error) {
	var current uint64
	row := db.QueryRow(ctx, fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE aggregate_id = ?", s.tableName), aggregateID)
	if err := row.Scan(&current); err != nil {
		return 0, err
	}
	return current, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
