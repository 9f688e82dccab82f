package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"goldpos/backend/internal/domain"
)

const currentRatesKey = "goldpos:rates:current"

// setIfNotOlder writes ARGV[1] unless the cached snapshot carries a version
// above ARGV[2]. ARGV[3] is the TTL in milliseconds; zero keeps the key.
var setIfNotOlder = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and type(decoded) == "table" and tonumber(decoded["version"]) and tonumber(decoded["version"]) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

type RedisRateCache struct {
	client redis.UniversalClient
}

func NewRedisRateCache(client redis.UniversalClient) *RedisRateCache {
	return &RedisRateCache{client: client}
}

func (c *RedisRateCache) Get(ctx context.Context) (*domain.RateSnapshot, bool, error) {
	val, err := c.client.Get(ctx, currentRatesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snapshot domain.RateSnapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *RedisRateCache) Set(ctx context.Context, value *domain.RateSnapshot, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ttlMillis := int64(0)
	if ttl > 0 {
		ttlMillis = max(ttl.Milliseconds(), 1)
	}
	return setIfNotOlder.Run(ctx, c.client, []string{currentRatesKey}, payload, value.Version, ttlMillis).Err()
}

func (c *RedisRateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, currentRatesKey).Err()
}
