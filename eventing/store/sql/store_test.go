package sql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"custman/eventing"
	"custman/storage/database"
	basicdb "custman/storage/database/basic"
)

// 测试辅助：创建内存数据库并初始化事件表
func setupTestDB(t *testing.T) database.IDatabase {
	db, err := basicdb.New(database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLEventStore(db, DefaultTableName)
	require.NoError(t, store.Init(context.Background()))
	return db
}

func makeEvent(aggregateID int64, id string, version uint64, payload map[string]interface{}) eventing.Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	e := eventing.NewEvent(aggregateID, "Customer", "TestEvent", version, payload)
	e.ID = id
	return *e
}

// 辅助函数：将 eventing.Event 切片转换为 IStorableEvent 切片
func toStorableEvents(events []eventing.Event) []eventing.IStorableEvent {
	storable := make([]eventing.IStorableEvent, len(events))
	for i := range events {
		storable[i] = &events[i]
	}
	return storable
}

func TestSQLEventStore_AppendEvents(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(123)

	events := []eventing.Event{
		makeEvent(aggregateID, "event-1", 1, map[string]interface{}{"value": 100}),
		makeEvent(aggregateID, "event-2", 2, map[string]interface{}{"value": 200}),
	}

	err := store.AppendEvents(ctx, aggregateID, toStorableEvents(events), 0)
	assert.NoError(t, err)

	loaded, err := store.LoadEvents(ctx, aggregateID, 0)
	assert.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, "event-1", loaded[0].ID)
	assert.Equal(t, "event-2", loaded[1].ID)
}

func TestSQLEventStore_VersionConflict(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(456)

	events1 := []eventing.Event{makeEvent(aggregateID, "event-1", 1, nil)}
	err := store.AppendEvents(ctx, aggregateID, toStorableEvents(events1), 0)
	assert.NoError(t, err)

	events2 := []eventing.Event{makeEvent(aggregateID, "event-2", 1, nil)}
	err = store.AppendEvents(ctx, aggregateID, toStorableEvents(events2), 0) // 期望版本不匹配
	assert.Error(t, err)
	assert.True(t, eventing.IsConcurrencyError(err))
}

func TestSQLEventStore_NonSequentialVersionRejected(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(500)

	// 版本号跳过 1 直接为 2
	events := []eventing.Event{makeEvent(aggregateID, "event-bad", 2, nil)}
	err := store.AppendEvents(ctx, aggregateID, toStorableEvents(events), 0)
	assert.Error(t, err)
	assert.False(t, eventing.IsConcurrencyError(err))
}

func TestSQLEventStore_AppendEventsWithDB(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(100)

	// 使用外部事务
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	events := []eventing.Event{makeEvent(aggregateID, "event-tx-1", 1, nil)}
	err = store.AppendEventsWithDB(ctx, tx, aggregateID, toStorableEvents(events), 0)
	assert.NoError(t, err)

	err = tx.Commit()
	assert.NoError(t, err)

	loaded, err := store.LoadEvents(ctx, aggregateID, 0)
	assert.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSQLEventStore_HasAggregate(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(200)

	exists, err := store.HasAggregate(ctx, aggregateID)
	assert.NoError(t, err)
	assert.False(t, exists)

	events := []eventing.Event{makeEvent(aggregateID, "event-1", 1, nil)}
	err = store.AppendEvents(ctx, aggregateID, toStorableEvents(events), 0)
	require.NoError(t, err)

	exists, err = store.HasAggregate(ctx, aggregateID)
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLEventStore_GetAggregateVersion(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(300)

	// 新聚合版本为0
	version, err := store.GetAggregateVersion(ctx, aggregateID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), version)

	events := []eventing.Event{
		makeEvent(aggregateID, "event-1", 1, nil),
		makeEvent(aggregateID, "event-2", 2, nil),
		makeEvent(aggregateID, "event-3", 3, nil),
	}
	err = store.AppendEvents(ctx, aggregateID, toStorableEvents(events), 0)
	require.NoError(t, err)

	version, err = store.GetAggregateVersion(ctx, aggregateID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), version)
}

func TestSQLEventStore_StreamEvents(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()

	e1 := makeEvent(1, "event-old", 1, nil)
	e1.Timestamp = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.AppendEvents(ctx, 1, toStorableEvents([]eventing.Event{e1}), 0))

	e2 := makeEvent(2, "event-new", 1, nil)
	e2.Timestamp = time.Now()
	require.NoError(t, store.AppendEvents(ctx, 2, toStorableEvents([]eventing.Event{e2}), 0))

	events, err := store.StreamEvents(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "event-new", events[0].ID)
}

func TestSQLEventStore_LoadEvents_PayloadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLEventStore(db, DefaultTableName)

	ctx := context.Background()
	aggregateID := int64(900)

	payload := map[string]interface{}{"firstName": "张", "lastName": "三"}
	events := []eventing.Event{makeEvent(aggregateID, "event-payload", 1, payload)}
	require.NoError(t, store.AppendEvents(ctx, aggregateID, toStorableEvents(events), 0))

	loaded, err := store.LoadEvents(ctx, aggregateID, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got, ok := loaded[0].GetPayload().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "张", got["firstName"])
	assert.Equal(t, "三", got["lastName"])
}
