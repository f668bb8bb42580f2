package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：用户 A 同时发起两笔转账/提现（网络抖动导致重复提交），
// 或者交互请求与后台分发任务同时改同一个钱包。
//
// 单槽位的增减由条件 UPDATE 保证原子，但转账/互转/提现是
// "扣 A + 记流水 + 入 B" 的多步流程，必须把同一用户的多步流程
// 串行化，否则余额校验和流水快照会交错。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】用 Lua 脚本保证"检查+删除"的原子性：
// 锁超时后被别人拿走时，过期持有者的 Unlock 不会删掉新持有者的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按用户维度的钱包锁
// ============================================================================

// NewWalletLock 创建钱包操作锁（按用户维度）
//
// 按用户加锁：不同用户可以并发转账/提现，同一用户的多步资金
// 流程串行执行。value 用请求标识，便于追踪是哪个请求持有锁
func NewWalletLock(client *redis.Client, uCode int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:user:%d", uCode)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}

// ============================================================================
// 进程内钱包互斥
// ============================================================================

var localWalletMu sync.Map // uCode -> *sync.Mutex

// LockWalletLocal 进程内的用户级钱包互斥，返回解锁函数
//
// redis 未配置的单进程部署走这里兜底：资金流程和收益发放仍然
// 按用户串行。TryLock + 重试的形状与 redis 锁一致，拿不到就
// 失败返回，不会因为两个流程互相等对方的用户锁卡死
func LockWalletLocal(ctx context.Context, uCode int64, retryInterval time.Duration, maxRetries int) (func(), error) {
	v, _ := localWalletMu.LoadOrStore(uCode, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	for i := 0; i < maxRetries; i++ {
		if mu.TryLock() {
			return mu.Unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return nil, ErrLockFailed
}
