package stores

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/liut/showroom/pkg/settings"
)

type RedisClient = redis.UniversalClient

var (
	rcOnce sync.Once
	rcu    RedisClient

	ssOnce sync.Once
	ssu    Sessions
)

// SgtRC start return a singleton instance of redis client
func SgtRC() RedisClient {
	rcOnce.Do(func() {
		redisURI := settings.Current.RedisURI
		opt, err := redis.ParseURL(redisURI)
		if err != nil {
			logger().Panicw("prase redisURI fail", "uri", redisURI, "err", err)
		}
		rcu = redis.NewClient(opt)
		pingStatus := rcu.Ping(context.Background())
		if err = pingStatus.Err(); err != nil {
			logger().Panicw("ping redis fail", "err", err)
		}
	})

	return rcu
}

// SgtSessions returns the sessions backend selected by settings
func SgtSessions() Sessions {
	ssOnce.Do(func() {
		if settings.Current.SessionStore == "redis" {
			ssu = NewRedisSessions(SgtRC(), settings.Current.HistoryMax)
		} else {
			ssu = NewMemorySessions(settings.Current.HistoryMax)
		}
	})
	return ssu
}
