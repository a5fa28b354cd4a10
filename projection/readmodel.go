package projection

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"custman/cache"
	"custman/errors"
	"custman/storage/database"
)

// DefaultTableName 读模型默认表名
const DefaultTableName = "customer_views"

// viewSchemaDDL 读模型建表语句
func viewSchemaDDL(tableName string) string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id INTEGER PRIMARY KEY,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            date_of_birth DATETIME NOT NULL,
            phone_number TEXT,
            email TEXT,
            bank_account_number TEXT,
            is_deleted INTEGER NOT NULL DEFAULT 0,
            version INTEGER NOT NULL,
            updated_at DATETIME NOT NULL
        )
    `, tableName)
}

// ReadModelConfig 读模型配置
type ReadModelConfig struct {
	// TableName 为空时使用 DefaultTableName
	TableName string
	// CacheSize 查询缓存条目上限；<=0 时禁用缓存
	CacheSize int
	// CacheTTL 缓存过期时间；0 表示不过期
	CacheTTL time.Duration
}

// ReadModel 客户读模型的 SQL 实现，带可选的 LRU 查询缓存。
//
// 同时作为写入侧（投影器更新行）与查询侧（GetByID/List/ExistsByEmail）。
// ExistsByEmail 实现了命令侧的邮箱唯一性查询边界。
type ReadModel struct {
	db        database.IDatabase
	tableName string
	cache     *cache.Cache[int64, *CustomerView]
}

// NewReadModel 创建客户读模型
func NewReadModel(db database.IDatabase, config ReadModelConfig) *ReadModel {
	tableName := config.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}
	rm := &ReadModel{db: db, tableName: tableName}
	if config.CacheSize > 0 {
		rm.cache = cache.New[int64, *CustomerView](cache.Config{
			MaxSize: config.CacheSize,
			TTL:     config.CacheTTL,
		})
	}
	return rm
}

// Init 创建读模型表（若不存在）
func (rm *ReadModel) Init(ctx context.Context) error {
	_, err := rm.db.Exec(ctx, viewSchemaDDL(rm.tableName))
	return err
}

const viewColumns = "id, first_name, last_name, date_of_birth, phone_number, email, bank_account_number, is_deleted, version, updated_at"

// GetByID 按 ID 查询客户视图。已删除的客户同样返回（由调用方决定展示策略）。
func (rm *ReadModel) GetByID(ctx context.Context, customerID int64) (*CustomerView, error) {
	if rm.cache != nil {
		if view, found := rm.cache.Get(customerID); found {
			return view, nil
		}
	}

	row := rm.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", viewColumns, rm.tableName), customerID)
	view, err := scanView(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("客户不存在")
		}
		return nil, errors.WrapError(err, errors.ErrCodeDatabase, "查询客户视图失败")
	}

	if rm.cache != nil {
		rm.cache.Set(customerID, view)
	}
	return view, nil
}

// List 按 ID 升序分页列出未删除的客户
func (rm *ReadModel) List(ctx context.Context, offset, limit int) ([]*CustomerView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := rm.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE is_deleted = 0 ORDER BY id ASC LIMIT ? OFFSET ?", viewColumns, rm.tableName),
		limit, offset)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeDatabase, "查询客户列表失败")
	}
	defer rows.Close()

	var views []*CustomerView
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeDatabase, "扫描客户视图失败")
		}
		views = append(views, view)
	}
	return views, nil
}

// ExistsByEmail 检查邮箱是否已被其他客户使用（排除 excludeID 与已删除客户）
func (rm *ReadModel) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	row := rm.db.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE email = ? AND id != ? AND is_deleted = 0", rm.tableName),
		email, excludeID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, errors.WrapError(err, errors.ErrCodeDatabase, "邮箱查询失败")
	}
	return count > 0, nil
}

// CacheStats 返回查询缓存统计；未启用缓存时返回零值
func (rm *ReadModel) CacheStats() cache.CacheStats {
	if rm.cache == nil {
		return cache.CacheStats{}
	}
	return rm.cache.Stats()
}

// upsert 写入或整体替换一行视图，并使缓存失效
func (rm *ReadModel) upsert(ctx context.Context, view *CustomerView) error {
	_, err := rm.db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            date_of_birth = excluded.date_of_birth,
            phone_number = excluded.phone_number,
            email = excluded.email,
            bank_account_number = excluded.bank_account_number,
            is_deleted = excluded.is_deleted,
            version = excluded.version,
            updated_at = excluded.updated_at
    `, rm.tableName, viewColumns),
		view.ID, view.FirstName, view.LastName, view.DateOfBirth,
		view.PhoneNumber, view.Email, view.BankAccountNumber,
		boolToInt(view.IsDeleted), view.Version, view.UpdatedAt)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeDatabase, "写入客户视图失败")
	}
	rm.invalidate(view.ID)
	return nil
}

// currentVersion 返回视图行当前的事件版本；行不存在时返回 0
func (rm *ReadModel) currentVersion(ctx context.Context, customerID int64) (uint64, error) {
	row := rm.db.QueryRow(ctx,
		fmt.Sprintf("SELECT version FROM %s WHERE id = ?", rm.tableName), customerID)
	var version uint64
	if err := row.Scan(&version); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func (rm *ReadModel) invalidate(customerID int64) {
	if rm.cache != nil {
		rm.cache.Delete(customerID)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (*CustomerView, error) {
	var (
		view      CustomerView
		phone     sql.NullString
		email     sql.NullString
		bank      sql.NullString
		isDeleted int
	)
	if err := row.Scan(&view.ID, &view.FirstName, &view.LastName, &view.DateOfBirth,
		&phone, &email, &bank, &isDeleted, &view.Version, &view.UpdatedAt); err != nil {
		return nil, err
	}
	if phone.Valid {
		view.PhoneNumber = &phone.String
	}
	if email.Valid {
		view.Email = &email.String
	}
	if bank.Valid {
		view.BankAccountNumber = &bank.String
	}
	view.IsDeleted = isDeleted != 0
	return &view, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
