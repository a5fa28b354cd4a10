// Package sql 基于通用 SQL 接口的事件存储实现
package sql

import (
	"context"
	"fmt"

	"custman/storage/database"
)

// DefaultTableName 事件表默认名称
const DefaultTableName = "customer_events"

// SchemaDDL 返回事件表的建表语句
//
// UNIQUE(aggregate_id, version) 是乐观锁的最后防线：
// 即使两个事务同时通过了版本检查，也只有一个能成功插入。
func SchemaDDL(tableName string) string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            aggregate_id INTEGER NOT NULL,
            aggregate_type TEXT NOT NULL,
            version INTEGER NOT NULL,
            timestamp DATETIME NOT NULL,
            payload TEXT NOT NULL,
            metadata TEXT NOT NULL,
            UNIQUE(aggregate_id, version)
        )
    `, tableName)
}

// SQLEventStore 基于通用 SQL 接口的事件存储
type SQLEventStore struct {
	db        database.IDatabase
	tableName string
}

func NewSQLEventStore(db database.IDatabase, tableName string) *SQLEventStore {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &SQLEventStore{db: db, tableName: tableName}
}

// Init 创建事件表（若不存在）并检查连接
func (s *SQLEventStore) Init(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, SchemaDDL(s.tableName))
	return err
}

func (s *SQLEventStore) GetDB() database.IDatabase { return s.db }
func (s *SQLEventStore) GetTableName() string      { return s.tableName }
