// Package cache 提供读模型查询用的进程内缓存。
//
// 条目自写入起按 TTL 过期，容量满时驱逐最久未使用的条目。
// 面向读多写少的查询路径，配合写路径的主动失效使用：
//
//	views := cache.New[int64, *CustomerView](cache.Config{MaxSize: 1024, TTL: time.Minute})
//	views.Set(id, view)
//	if view, ok := views.Get(id); ok { ... }
//	views.Delete(id) // 投影更新后失效
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config 缓存配置
type Config struct {
	// MaxSize 最大条目数；<=0 表示不限容量
	MaxSize int

	// TTL 条目存活时间，自写入起计；0 表示永不过期
	TTL time.Duration
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Cache 并发安全的泛型 LRU 缓存。
// 读取也会调整 LRU 顺序，因此统一用互斥锁而非读写锁。
type Cache[K comparable, V any] struct {
	maxSize int
	ttl     time.Duration

	mu      sync.Mutex
	entries map[K]*list.Element
	order   *list.List // 队首为最近使用

	hits      int64
	misses    int64
	evictions int64
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time // 零值表示永不过期
}

// New 创建缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	return &Cache[K, V]{
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get 返回键对应的值；过期条目视为未命中并被移除
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	ent := elem.Value.(*entry[K, V])
	if !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set 写入键值；已存在的键更新值并重置过期时间
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})

	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
		}
	}
}

// Delete 移除键，返回其是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Clear 清空所有条目（统计计数保留）
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Size 当前条目数
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats 返回统计快照
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.order.Len(),
	}
}

func (c *Cache[K, V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[K, V])
	delete(c.entries, ent.key)
	c.order.Remove(elem)
}
