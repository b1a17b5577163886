// Package store persists room metadata and message history in Redis.
//
// Every room owns two keys sharing one expiry budget:
//
//	meta:<roomId>      hash  createdAt=<unix ms>, p:<token>=<joined unix ms>
//	messages:<roomId>  list  JSON encoded messages in append order
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	domain "github.com/example/private-chat/domain/room"
	"github.com/redis/go-redis/v9"
)

const (
	metaPrefix        = "meta:"
	messagesPrefix    = "messages:"
	createdAtField    = "createdAt"
	participantPrefix = "p:"

	notifyKeyspaceEvents = "notify-keyspace-events"
)

// admitScript atomically checks membership and capacity and adds a token.
// HSET keeps the existing expiry, so admission never extends a room's life.
// Returns the domain.Admission code.
var admitScript = redis.NewScript(`
	local meta = KEYS[1]
	local presented = ARGV[1]
	local fresh = ARGV[2]
	local capacity = tonumber(ARGV[3])
	local joined_at = ARGV[4]

	if redis.call('EXISTS', meta) == 0 then
		return 0
	end
	if presented ~= '' and redis.call('HEXISTS', meta, 'p:' .. presented) == 1 then
		return 2
	end

	-- every field except createdAt is a participant
	local count = redis.call('HLEN', meta) - 1
	if count >= capacity then
		return 1
	end

	redis.call('HSET', meta, 'p:' .. fresh, joined_at)
	return 3
`)

// appendScript appends a message only while the metadata key exists and
// aligns the message list expiry with the metadata expiry in the same step.
// Returns the new list length, or -1 if the room is gone.
var appendScript = redis.NewScript(`
	local meta = KEYS[1]
	local messages = KEYS[2]

	if redis.call('EXISTS', meta) == 0 then
		return -1
	end

	local n = redis.call('RPUSH', messages, ARGV[1])
	local ttl = redis.call('PTTL', meta)
	if ttl > 0 then
		redis.call('PEXPIRE', messages, ttl)
	end
	return n
`)

// Stats holds operation counters.
type Stats struct {
	Appends uint64
	Errors  uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Appends uint64 `json:"appends"`
	Errors  uint64 `json:"errors"`
}

// RedisStore is the expiring key-value store backing every room.
type RedisStore struct {
	client *redis.Client
	stats  *Stats
}

// NewRedisStore creates a store on top of an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		stats:  &Stats{},
	}
}

// MetaKey returns the metadata key of a room.
func MetaKey(roomID string) string {
	return metaPrefix + roomID
}

// MessagesKey returns the message list key of a room.
func MessagesKey(roomID string) string {
	return messagesPrefix + roomID
}

// CreateMetadata writes an empty metadata record and its expiry in one transaction.
func (s *RedisStore) CreateMetadata(ctx context.Context, roomID string, createdAt time.Time, ttl time.Duration) error {
	key := MetaKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, createdAtField, createdAt.UnixMilli())
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return s.unavailable("create metadata", err)
	}
	return nil
}

// GetTTL returns the remaining lifetime of the metadata record.
// A missing or non-expiring record yields 0.
func (s *RedisStore) GetTTL(ctx context.Context, roomID string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, MetaKey(roomID)).Result()
	if err != nil {
		return 0, s.unavailable("pttl", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// SetTTL applies the same expiry to the metadata record and the message list.
func (s *RedisStore) SetTTL(ctx context.Context, roomID string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.PExpire(ctx, MetaKey(roomID), ttl)
		pipe.PExpire(ctx, MessagesKey(roomID), ttl)
		return nil
	})
	if err != nil {
		return s.unavailable("set ttl", err)
	}
	return nil
}

// Exists reports whether the metadata record is still present.
func (s *RedisStore) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, MetaKey(roomID)).Result()
	if err != nil {
		return false, s.unavailable("exists", err)
	}
	return n == 1, nil
}

// Admit tries to add fresh to the room's participants. If presented already
// belongs to the room it is kept and AdmissionAlreadyMember is returned.
func (s *RedisStore) Admit(ctx context.Context, roomID, presented, fresh string, capacity int, now time.Time) (domain.Admission, error) {
	code, err := admitScript.Run(ctx, s.client, []string{MetaKey(roomID)},
		presented,
		fresh,
		capacity,
		now.UnixMilli(),
	).Int()
	if err != nil {
		return domain.AdmissionNotFound, s.unavailable("admit", err)
	}
	return domain.Admission(code), nil
}

// IsParticipant reports whether token is in the room's participant set.
// A missing room has no participants.
func (s *RedisStore) IsParticipant(ctx context.Context, roomID, token string) (bool, error) {
	ok, err := s.client.HExists(ctx, MetaKey(roomID), participantPrefix+token).Result()
	if err != nil {
		return false, s.unavailable("hexists", err)
	}
	return ok, nil
}

// Participants returns the number of participants admitted to a room.
func (s *RedisStore) Participants(ctx context.Context, roomID string) (int, error) {
	fields, err := s.client.HKeys(ctx, MetaKey(roomID)).Result()
	if err != nil {
		return 0, s.unavailable("hkeys", err)
	}
	n := 0
	for _, f := range fields {
		if strings.HasPrefix(f, participantPrefix) {
			n++
		}
	}
	return n, nil
}

// AppendMessage appends msg to the room's list. It returns false without
// writing anything when the room no longer exists.
func (s *RedisStore) AppendMessage(ctx context.Context, roomID string, msg domain.Message) (bool, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("marshal message: %w", err)
	}

	n, err := appendScript.Run(ctx, s.client, []string{MetaKey(roomID), MessagesKey(roomID)}, data).Int64()
	if err != nil {
		return false, s.unavailable("append", err)
	}
	if n < 0 {
		return false, nil
	}

	atomic.AddUint64(&s.stats.Appends, 1)
	return true, nil
}

// ListMessages returns every stored message of a room in append order.
func (s *RedisStore) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	raw, err := s.client.LRange(ctx, MessagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, s.unavailable("lrange", err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			atomic.AddUint64(&s.stats.Errors, 1)
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteRoomData removes both keys of a room. Missing keys are ignored.
func (s *RedisStore) DeleteRoomData(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, MetaKey(roomID), MessagesKey(roomID)).Err(); err != nil {
		return s.unavailable("delete", err)
	}
	return nil
}

// Ping checks if the Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetStats returns the current operation counters.
func (s *RedisStore) GetStats() StatsSnapshot {
	return StatsSnapshot{
		Appends: atomic.LoadUint64(&s.stats.Appends),
		Errors:  atomic.LoadUint64(&s.stats.Errors),
	}
}

// EnableExpiryEvents turns on keyevent notifications for expired keys. Flags
// already configured on the server are kept.
func (s *RedisStore) EnableExpiryEvents(ctx context.Context) error {
	current, err := s.client.ConfigGet(ctx, notifyKeyspaceEvents).Result()
	if err != nil {
		return fmt.Errorf("read keyspace events: %w", err)
	}

	flags := current[notifyKeyspaceEvents]
	merged := mergeKeyspaceFlags(flags)
	if merged == flags {
		return nil
	}

	if err := s.client.ConfigSet(ctx, notifyKeyspaceEvents, merged).Err(); err != nil {
		return fmt.Errorf("enable keyspace events: %w", err)
	}
	return nil
}

// mergeKeyspaceFlags adds the keyevent class (E) and expired events (x) to an
// existing notify-keyspace-events value. "A" already covers x.
func mergeKeyspaceFlags(current string) string {
	merged := current
	if !strings.ContainsRune(merged, 'E') {
		merged += "E"
	}
	if !strings.ContainsAny(merged, "xA") {
		merged += "x"
	}
	return merged
}

// WatchExpirations calls onExpired with the room id of every metadata key
// Redis expires, until ctx is cancelled.
func (s *RedisStore) WatchExpirations(ctx context.Context, onExpired func(roomID string)) error {
	channel := fmt.Sprintf("__keyevent@%d__:expired", s.client.Options().DB)
	sub := s.client.PSubscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription confirmation before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return s.unavailable("psubscribe", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if roomID, ok := RoomIDFromMetaKey(msg.Payload); ok {
				onExpired(roomID)
			}
		}
	}
}

// RoomIDFromMetaKey extracts the room id from a metadata key.
func RoomIDFromMetaKey(key string) (string, bool) {
	roomID, ok := strings.CutPrefix(key, metaPrefix)
	if !ok || roomID == "" {
		return "", false
	}
	return roomID, true
}

// CreatedAt returns the creation time recorded in a room's metadata.
func (s *RedisStore) CreatedAt(ctx context.Context, roomID string) (time.Time, error) {
	v, err := s.client.HGet(ctx, MetaKey(roomID), createdAtField).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return time.Time{}, s.unavailable("hget", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode createdAt: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (s *RedisStore) unavailable(op string, err error) error {
	atomic.AddUint64(&s.stats.Errors, 1)
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}
