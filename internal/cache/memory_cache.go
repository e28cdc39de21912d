package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache实现的进程内缓存
// 单实例部署的默认选择，结果随进程重启丢失
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache 创建一个新的内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	defaults := DefaultConfig()

	expiration := config.DefaultTTL
	if expiration == 0 {
		expiration = defaults.DefaultTTL
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = defaults.CleanupInterval
	}

	return &MemoryCache{
		store: gocache.New(expiration, cleanupInterval),
	}, nil
}

// Get 获取缓存的结果JSON
func (m *MemoryCache) Get(key string) (string, bool, error) {
	value, found := m.store.Get(key)
	if !found {
		return "", false, nil
	}

	str, ok := value.(string)
	if !ok {
		// 本缓存只写入字符串，类型不符按未命中处理
		return "", false, nil
	}
	return str, true, nil
}

// Set 写入结果JSON，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.store.Set(key, value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(key string) error {
	m.store.Delete(key)
	return nil
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() error {
	m.store.Flush()
	return nil
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
