package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"mediaflow/internal/config"
)

// claimScript moves up to ARGV[2] visible members past the visibility window
// and stamps each with a fresh receipt. Running it as one script keeps two
// consumers from claiming the same member.
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for i, id in ipairs(ids) do
  local receipt = ARGV[4] .. ':' .. i
  redis.call('ZADD', KEYS[1], ARGV[3], id)
  redis.call('HSET', KEYS[3], id, receipt)
  local attempts = redis.call('HINCRBY', KEYS[4], id, 1)
  local payload = redis.call('HGET', KEYS[2], id)
  table.insert(out, id)
  table.insert(out, payload or '')
  table.insert(out, receipt)
  table.insert(out, tostring(attempts))
end
return out
`)

var ackScript = goredis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)

// RedisQueue keeps items in a hash and schedules them in a sorted set scored
// by the unix millisecond at which they become visible.
type RedisQueue struct {
	client     goredis.UniversalClient
	owned      bool
	prefix     string
	visibility time.Duration
}

// NewRedisFromConfig connects to the configured Redis server.
func NewRedisFromConfig(cfg *config.Config) (*RedisQueue, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("queue: ping redis %s: %w", cfg.Queue.RedisAddr, err)
	}
	q := NewRedis(client, cfg.Queue.RedisKeyPrefix, cfg.VisibilityTimeout())
	q.owned = true
	return q, nil
}

// NewRedis wraps an existing client. The caller keeps ownership of client.
func NewRedis(client goredis.UniversalClient, prefix string, visibility time.Duration) *RedisQueue {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &RedisQueue{client: client, prefix: prefix, visibility: visibility}
}

func (q *RedisQueue) readyKey() string    { return q.prefix + "queue:ready" }
func (q *RedisQueue) itemsKey() string    { return q.prefix + "queue:items" }
func (q *RedisQueue) receiptsKey() string { return q.prefix + "queue:receipts" }
func (q *RedisQueue) attemptsKey() string { return q.prefix + "queue:attempts" }

func (q *RedisQueue) keys() []string {
	return []string{q.readyKey(), q.itemsKey(), q.receiptsKey(), q.attemptsKey()}
}

// Enqueue stores the payload and schedules it after delay.
func (q *RedisQueue) Enqueue(ctx context.Context, item Item, delay time.Duration) error {
	if err := validateItem(item); err != nil {
		return err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: encode item: %w", err)
	}
	id := uuid.NewString()
	score := float64(time.Now().Add(max(delay, 0)).UnixMilli())

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.itemsKey(), id, string(payload))
	pipe.ZAdd(ctx, q.readyKey(), goredis.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", item, err)
	}
	return nil
}

// Receive claims up to max visible items.
func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	now := time.Now()
	raw, err := claimScript.Run(ctx, q.client, q.keys(),
		now.UnixMilli(), max, now.Add(q.visibility).UnixMilli(), uuid.NewString(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("queue: receive: %w", err)
	}
	deliveries := make([]Delivery, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		d := Delivery{ID: raw[i], Receipt: raw[i+2]}
		d.Attempts, _ = strconv.Atoi(raw[i+3])
		if raw[i+1] == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw[i+1]), &d.Item); err != nil {
			return nil, fmt.Errorf("queue: decode item %s: %w", d.ID, err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// Ack removes a delivered item if the receipt still owns it.
func (q *RedisQueue) Ack(ctx context.Context, d Delivery) error {
	removed, err := ackScript.Run(ctx, q.client, q.keys(), d.ID, d.Receipt).Int()
	if err != nil {
		return fmt.Errorf("queue: ack %s: %w", d.ID, err)
	}
	if removed == 0 {
		return fmt.Errorf("queue: ack %s: %w", d.ID, ErrStaleReceipt)
	}
	return nil
}

// Close releases the client when the queue created it.
func (q *RedisQueue) Close() error {
	if q == nil || !q.owned {
		return nil
	}
	return q.client.Close()
}
