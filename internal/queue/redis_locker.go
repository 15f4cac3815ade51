package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const lockPrefix = "barber_queue:lock:"

// Снимаем блокировку только если она всё ещё наша.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Продлеваем блокировку только если она всё ещё наша.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker сериализует изменения между несколькими процессами с общей БД.
// TTL ограничивает время жизни блокировки, если процесс упал, не отпустив её.
// Пока блокировка удерживается, она продлевается каждые TTL/3.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, retry: 15 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("захват блокировки %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			// отпускаем даже если исходный контекст уже отменён
			_ = releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err()
		})
	}, nil
}

// keepAlive продлевает TTL, пока не закрыт stop или пока ключ не перешёл к другому владельцу.
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := refreshScript.Run(context.Background(), l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
			if err == nil && ok == 0 {
				return
			}
		}
	}
}
