// Package database 提供通用的数据库抽象接口
//
// 设计目标：
// 1. 隔离具体的 SQL 驱动（sqlite 等）
// 2. 提供统一的查询/执行/事务接口
// 3. 便于单元测试（Mock）
package database

import (
	"context"
	"database/sql"
)

// IDatabase 通用数据库接口
type IDatabase interface {
	// 查询操作
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow

	// 执行操作
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// 事务操作
	Begin(ctx context.Context) (ITransaction, error)

	// 连接管理
	Ping(ctx context.Context) error
	Close() error
}

// ITransaction 事务接口
type ITransaction interface {
	IDatabase

	// 事务控制
	Commit() error
	Rollback() error
}

// IRows 查询结果集接口
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// IRow 单行结果接口
type IRow interface {
	Scan(dest ...any) error
}

// Config 数据库配置
type Config struct {
	// Driver 驱动名，默认 sqlite；调用方必须确保驱动已通过空导入注册
	Driver string

	// DSN 数据源（sqlite 下为文件路径或 :memory:）
	DSN string

	// 连接池配置
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // 秒
}
