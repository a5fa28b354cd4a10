package customer

import (
	"context"
	stderrors "errors"

	deventsourced "custman/domain/eventsourced"
	"custman/errors"
	"custman/eventing"
	"custman/idgen/snowflake"
	"custman/logging"
)

// defaultMaxRetries 版本冲突时命令的最大重试次数
const defaultMaxRetries = 3

// ICustomerService 客户服务端口。
//
// 所有交付层（HTTP、CLI 等）都应通过该端口操作客户，
// 适配器只做输入输出形状的转换，不得重新实现校验与重放逻辑。
type ICustomerService interface {
	// Create 创建客户，返回新分配的客户 ID。
	Create(ctx context.Context, cmd CreateCustomerCommand) (int64, error)

	// Update 部分更新客户。所有字段均未设置时为无操作。
	Update(ctx context.Context, cmd UpdateCustomerCommand) error

	// Delete 删除客户（事件溯源语义下的软删除，聚合进入终态）。
	Delete(ctx context.Context, cmd DeleteCustomerCommand) error

	// Load 重放事件重建客户聚合（只读）。
	Load(ctx context.Context, customerID int64) (*Customer, error)
}

// IEmailLookup 邮箱唯一性查询协作方。
//
// 唯一性约束由事件存储之外的读模型维护（例如投影表），
// 这里只定义查询边界。excludeID 用于更新场景排除自身。
type IEmailLookup interface {
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
}

// IRepository 客户聚合仓储接口
type IRepository = deventsourced.IEventSourcedRepository[*Customer]

// ServiceOptions 客户服务配置
type ServiceOptions struct {
	Repository IRepository
	// EmailLookup 可选；为 nil 时跳过唯一性检查
	EmailLookup IEmailLookup
	// IDGenerator 可选；默认使用全局雪花生成器
	IDGenerator func() int64
	// MaxRetries 版本冲突重试上限；<=0 时使用默认值
	MaxRetries int
	Logger     logging.Logger
}

// Service 客户服务，实现 ICustomerService 端口。
//
// 每个命令执行 加载 -> 变更 -> 追加 -> 提交 的完整周期；
// 乐观锁冲突（另一命令抢先推进了版本）在服务层做有界重试，
// 重试耗尽后以冲突错误返回调用方。
type Service struct {
	repo        IRepository
	emailLookup IEmailLookup
	idGen       func() int64
	maxRetries  int
	logger      logging.Logger
}

// NewService 创建客户服务
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Repository == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidInput, "repository不能为空")
	}
	svc := &Service{
		repo:        opts.Repository,
		emailLookup: opts.EmailLookup,
		idGen:       opts.IDGenerator,
		maxRetries:  opts.MaxRetries,
		logger:      opts.Logger,
	}
	if svc.idGen == nil {
		svc.idGen = snowflake.Generate
	}
	if svc.maxRetries <= 0 {
		svc.maxRetries = defaultMaxRetries
	}
	if svc.logger == nil {
		svc.logger = logging.ComponentLogger("customer.service")
	}
	return svc, nil
}

// Create 创建客户。
//
// 唯一性检查先于聚合变更执行；新聚合由雪花 ID 标识，
// 正常情况下不会与已有事件流冲突。
func (s *Service) Create(ctx context.Context, cmd CreateCustomerCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkEmailUnique(ctx, cmd.Email, 0); err != nil {
		return 0, err
	}

	customerID := s.idGen()
	aggregate := NewCustomer(customerID)
	if err := aggregate.Create(cmd.Fields()); err != nil {
		return 0, err
	}

	if err := s.repo.Save(ctx, aggregate); err != nil {
		return 0, mapStoreError(err)
	}

	s.logger.Info(ctx, "customer created",
		logging.Int64("customer_id", customerID))
	return customerID, nil
}

// Update 部分更新客户，版本冲突时有界重试。
func (s *Service) Update(ctx context.Context, cmd UpdateCustomerCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := s.checkEmailUnique(ctx, cmd.Email, cmd.CustomerID); err != nil {
		return err
	}

	return s.withConflictRetry(ctx, "update", func() error {
		aggregate, err := s.loadActive(ctx, cmd.CustomerID)
		if err != nil {
			return err
		}
		if err := aggregate.Update(cmd.Fields()); err != nil {
			return err
		}
		return s.repo.Save(ctx, aggregate)
	})
}

// Delete 删除客户，版本冲突时有界重试。
func (s *Service) Delete(ctx context.Context, cmd DeleteCustomerCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return s.withConflictRetry(ctx, "delete", func() error {
		aggregate, err := s.loadActive(ctx, cmd.CustomerID)
		if err != nil {
			return err
		}
		if err := aggregate.Delete(); err != nil {
			return err
		}
		return s.repo.Save(ctx, aggregate)
	})
}

// Load 重放事件重建客户聚合。
// 不存在的聚合返回 NotFound，而非空的 Active 聚合。
func (s *Service) Load(ctx context.Context, customerID int64) (*Customer, error) {
	aggregate, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if aggregate.Status() == StatusUninitialized {
		return nil, errors.NewNotFoundError("客户不存在")
	}
	return aggregate, nil
}

// loadActive 加载聚合，不存在时返回 NotFound
func (s *Service) loadActive(ctx context.Context, customerID int64) (*Customer, error) {
	aggregate, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if aggregate.Status() == StatusUninitialized {
		return nil, errors.NewNotFoundError("客户不存在")
	}
	return aggregate, nil
}

// withConflictRetry 执行命令并在乐观锁冲突时重试。
// 冲突意味着命令间的交错，重新加载最新状态后整个命令重新执行。
func (s *Service) withConflictRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !eventing.IsConcurrencyError(err) {
			return mapStoreError(err)
		}
		lastErr = err
		s.logger.Debug(ctx, "version conflict, retrying command",
			logging.String("operation", op),
			logging.Int("attempt", attempt+1))
	}
	return errors.WrapError(lastErr, errors.ErrCodeConflict, "并发冲突：命令重试次数已用尽")
}

// checkEmailUnique 检查邮箱唯一性（未配置查询方或未提供邮箱时跳过）
func (s *Service) checkEmailUnique(ctx context.Context, email *string, excludeID int64) error {
	if s.emailLookup == nil || email == nil || *email == "" {
		return nil
	}
	exists, err := s.emailLookup.ExistsByEmail(ctx, *email, excludeID)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeDatabase, "邮箱唯一性检查失败")
	}
	if exists {
		return errors.NewConflictError("邮箱已被其他客户使用")
	}
	return nil
}

// mapStoreError 将事件存储的基础设施错误映射为应用错误。
// 领域语义错误（校验、未找到、冲突）原样透传。
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if eventing.IsConcurrencyError(err) {
		return errors.WrapError(err, errors.ErrCodeConflict, "并发冲突")
	}
	if eventing.IsStoreFailed(err) {
		return errors.WrapError(err, errors.ErrCodeDatabase, "事件存储操作失败")
	}
	return err
}

var _ ICustomerService = (*Service)(nil)
