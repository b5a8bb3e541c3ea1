package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// 运行锁默认过期时间
	defaultLockTTL = 6 * time.Hour
	// Redis key 前缀
	lockKeyPrefix = "run-lock:"
)

// 仅删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 运行级互斥锁
type Locker interface {
	TryLock(ctx context.Context, runID uint) (bool, error)
	Unlock(ctx context.Context, runID uint) error
}

// LockManager 配置 Redis 时使用 SET NX，否则退化为进程内锁
type LockManager struct {
	mu     sync.Mutex
	owners map[uint]string
	redis  *redis.Client
	ttl    time.Duration
}

var _ Locker = (*LockManager)(nil)

// NewLockManager 创建运行锁，redisClient 为 nil 时只在本进程内互斥
func NewLockManager(redisClient *redis.Client, ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &LockManager{
		owners: make(map[uint]string),
		redis:  redisClient,
		ttl:    ttl,
	}
}

// TryLock 尝试获取锁，已被持有时返回 false
func (m *LockManager) TryLock(ctx context.Context, runID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.owners[runID]; held {
		return false, nil
	}

	owner := uuid.NewString()
	if m.redis != nil {
		ok, err := m.redis.SetNX(ctx, lockKey(runID), owner, m.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	m.owners[runID] = owner
	return true, nil
}

// Unlock 释放锁，未持有时为空操作
func (m *LockManager) Unlock(ctx context.Context, runID uint) error {
	m.mu.Lock()
	owner, held := m.owners[runID]
	delete(m.owners, runID)
	m.mu.Unlock()

	if !held || m.redis == nil {
		return nil
	}
	if err := unlockScript.Run(ctx, m.redis, []string{lockKey(runID)}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

func lockKey(runID uint) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, runID)
}
