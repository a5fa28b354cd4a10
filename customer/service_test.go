package customer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"custman/errors"
	"custman/eventing"
	"custman/eventing/store"
)

type fakeEmailLookup struct {
	existing map[string]int64 // email -> customerID
}

func (f *fakeEmailLookup) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	id, ok := f.existing[email]
	if !ok {
		return false, nil
	}
	return id != excludeID, nil
}

type serviceFixture struct {
	svc   *Service
	store *store.MemoryEventStore
}

func newServiceFixture(t *testing.T, lookup IEmailLookup) *serviceFixture {
	t.Helper()
	eventStore := store.NewMemoryEventStore()
	repo, err := NewRepository(eventStore, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceOptions{
		Repository:  repo,
		EmailLookup: lookup,
	})
	require.NoError(t, err)
	return &serviceFixture{svc: svc, store: eventStore}
}

func (f *serviceFixture) latestVersion(t *testing.T, id int64) uint64 {
	t.Helper()
	version, err := f.store.GetAggregateVersion(context.Background(), id)
	require.NoError(t, err)
	return version
}

func validCreateCommand() CreateCustomerCommand {
	return CreateCustomerCommand{
		FirstName:   "John",
		LastName:    "Doe",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestService_CreateLoadLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	// 创建：版本应为 1，加载后状态与输入一致
	id, err := f.svc.Create(ctx, validCreateCommand())
	require.NoError(t, err)
	require.Greater(t, id, int64(0))
	require.Equal(t, uint64(1), f.latestVersion(t, id))

	loaded, err := f.svc.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusActive, loaded.Status())
	require.Equal(t, "John", loaded.FirstName())
	require.Equal(t, "Doe", loaded.LastName())
	require.False(t, loaded.IsDeleted())

	// 部分更新：版本推进到 2，未修改字段保持原值
	err = f.svc.Update(ctx, UpdateCustomerCommand{CustomerID: id, FirstName: strPtr("Johnny")})
	require.NoError(t, err)
	require.Equal(t, uint64(2), f.latestVersion(t, id))

	loaded, err = f.svc.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Johnny", loaded.FirstName())
	require.Equal(t, "Doe", loaded.LastName())

	// 删除：版本推进到 3
	err = f.svc.Delete(ctx, DeleteCustomerCommand{CustomerID: id})
	require.NoError(t, err)
	require.Equal(t, uint64(3), f.latestVersion(t, id))

	loaded, err = f.svc.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, loaded.IsDeleted())

	// 删除后的更新：冲突错误，版本不变
	err = f.svc.Update(ctx, UpdateCustomerCommand{CustomerID: id, FirstName: strPtr("Jane")})
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))
	require.Equal(t, uint64(3), f.latestVersion(t, id))
}

func TestService_LoadUnknownIDIsNotFound(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.Load(context.Background(), 999999)
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestService_CreateValidationProducesNoRecord(t *testing.T) {
	f := newServiceFixture(t, nil)

	cmd := validCreateCommand()
	cmd.FirstName = ""
	_, err := f.svc.Create(context.Background(), cmd)
	require.Error(t, err)
	require.True(t, errors.IsValidation(err))
}

func TestService_UpdateUnknownIDIsNotFound(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.svc.Update(context.Background(), UpdateCustomerCommand{CustomerID: 12345, FirstName: strPtr("x")})
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))

	err = f.svc.Delete(context.Background(), DeleteCustomerCommand{CustomerID: 12345})
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestService_UpdateNoFieldsIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	id, err := f.svc.Create(ctx, validCreateCommand())
	require.NoError(t, err)

	err = f.svc.Update(ctx, UpdateCustomerCommand{CustomerID: id})
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.latestVersion(t, id))
}

func TestService_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeEmailLookup{existing: map[string]int64{"taken@example.com": 7}}
	f := newServiceFixture(t, lookup)

	// 创建时邮箱冲突
	cmd := validCreateCommand()
	cmd.Email = strPtr("taken@example.com")
	_, err := f.svc.Create(ctx, cmd)
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))

	// 不冲突的邮箱可以创建
	cmd.Email = strPtr("free@example.com")
	id, err := f.svc.Create(ctx, cmd)
	require.NoError(t, err)

	// 更新到已占用的邮箱冲突
	err = f.svc.Update(ctx, UpdateCustomerCommand{CustomerID: id, Email: strPtr("taken@example.com")})
	require.Error(t, err)
	require.True(t, errors.IsConflict(err))

	// 更新为自己已占用的邮箱不冲突
	lookup.existing["free@example.com"] = id
	err = f.svc.Update(ctx, UpdateCustomerCommand{CustomerID: id, Email: strPtr("free@example.com")})
	require.NoError(t, err)
}

func TestService_ConflictRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	id, err := f.svc.Create(ctx, validCreateCommand())
	require.NoError(t, err)

	// 模拟交错写入：命令执行期间另一写者抢先推进版本。
	// 服务层应在重试时重新加载并成功提交。
	interfered := false
	svc, err := NewService(ServiceOptions{
		Repository: &interferingRepo{
			IRepository: mustRepo(t, f.store),
			onFirstSave: func() {
				if interfered {
					return
				}
				interfered = true
				other := mustRepo(t, f.store)
				agg, loadErr := other.GetByID(ctx, id)
				require.NoError(t, loadErr)
				require.NoError(t, agg.Update(UpdateFields{LastName: strPtr("Racer")}))
				require.NoError(t, other.Save(ctx, agg))
			},
		},
	})
	require.NoError(t, err)

	err = svc.Update(ctx, UpdateCustomerCommand{CustomerID: id, FirstName: strPtr("Johnny")})
	require.NoError(t, err)
	require.True(t, interfered)

	// 两次更新都落盘：版本 3，两个修改都生效
	require.Equal(t, uint64(3), f.latestVersion(t, id))
	loaded, err := f.svc.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Johnny", loaded.FirstName())
	require.Equal(t, "Racer", loaded.LastName())
}

func mustRepo(t *testing.T, eventStore *store.MemoryEventStore) IRepository {
	t.Helper()
	repo, err := NewRepository(eventStore, nil)
	require.NoError(t, err)
	return repo
}

// interferingRepo 在首次 Save 前触发一次并发写入
type interferingRepo struct {
	IRepository
	onFirstSave func()
}

func (r *interferingRepo) Save(ctx context.Context, aggregate *Customer) error {
	r.onFirstSave()
	return r.IRepository.Save(ctx, aggregate)
}

type failingEventStore struct {
	*store.MemoryEventStore
}

func (f *failingEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	return eventing.NewStoreFailedError("磁盘写入失败", nil)
}

// 事件存储故障应映射为数据库错误，而非校验/冲突等领域语义错误
func TestService_StoreFailureMapsToDatabaseError(t *testing.T) {
	repo, err := NewRepository(&failingEventStore{store.NewMemoryEventStore()}, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceOptions{Repository: repo})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validCreateCommand())
	require.Error(t, err)
	require.True(t, errors.IsDatabase(err), "存储故障应映射为数据库错误: %v", err)
	require.False(t, errors.IsConflict(err))
}
