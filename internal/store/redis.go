package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/models"
)

const (
	dayFeedTTL = 7 * 24 * time.Hour
	searchTTL  = 24 * time.Hour
)

// RedisStore is the real-time backbone: per-room message logs kept in sorted
// sets scored by timestamp, change events fanned out over pub/sub channels,
// plus the search index and rate-limit counters.
//
// It implements chat.MessageStore and chat.Feed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate-limit middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// searchWordKey returns the key for a search word index.
func searchWordKey(word string) string {
	return fmt.Sprintf("search:words:%s", strings.ToLower(word))
}

// Append stores a message at the tail of a room log, assigning its ULID and
// timestamp. The reply quote, if present, is read-side state and is stripped
// before persisting.
func (s *RedisStore) Append(ctx context.Context, logKey string, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	msg.RoomKey = logKey

	data, err := marshalStored(msg)
	if err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, logKey, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	// The unscoped day feed is transient; lesson, DM and group logs persist.
	if strings.HasPrefix(logKey, "chat:class:day:") {
		s.client.Expire(ctx, logKey, dayFeedTTL)
	}

	// Index for search, best-effort.
	_ = s.IndexMessage(ctx, msg)

	return nil
}

// Range retrieves up to limit messages from a room log, newest first. A
// non-zero before timestamp pages further back (exclusive).
func (s *RedisStore) Range(ctx context.Context, logKey string, limit int, before int64) ([]models.Message, error) {
	var maxScore string
	if before > 0 {
		maxScore = fmt.Sprintf("(%d", before) // exclusive
	} else {
		maxScore = "+inf"
	}

	results, err := s.client.ZRevRangeByScore(ctx, logKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// ByID retrieves a specific message by ID, or (nil, nil) when absent.
func (s *RedisStore) ByID(ctx context.Context, logKey, id string) (*models.Message, error) {
	_, msg, err := s.find(ctx, logKey, id)
	return msg, err
}

// ByIDs retrieves several messages from one room log in a single scan,
// keyed by ID. Missing IDs are simply absent from the result.
func (s *RedisStore) ByIDs(ctx context.Context, logKey string, ids []string) (map[string]models.Message, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	results, err := s.client.ZRange(ctx, logKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	found := make(map[string]models.Message, len(ids))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		if want[msg.ID] {
			found[msg.ID] = msg
			if len(found) == len(ids) {
				break
			}
		}
	}

	return found, nil
}

// Update replaces the stored message with the same ID, preserving its score
// so log position is stable across edits and read-state flips.
func (s *RedisStore) Update(ctx context.Context, logKey string, msg *models.Message) error {
	raw, existing, err := s.find(ctx, logKey, msg.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	msg.Timestamp = existing.Timestamp
	data, err := marshalStored(msg)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, logKey, raw)
	pipe.ZAdd(ctx, logKey, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes a message from a room log. Unknown IDs are a no-op.
func (s *RedisStore) Delete(ctx context.Context, logKey, id string) error {
	raw, existing, err := s.find(ctx, logKey, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return s.client.ZRem(ctx, logKey, raw).Err()
}

// find scans a room log for the member holding the given message ID.
func (s *RedisStore) find(ctx context.Context, logKey, id string) (string, *models.Message, error) {
	results, err := s.client.ZRange(ctx, logKey, 0, -1).Result()
	if err != nil {
		return "", nil, err
	}

	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		if msg.ID == id {
			return data, &msg, nil
		}
	}

	return "", nil, nil
}

// marshalStored serializes a message for persistence without its read-side
// reply quote.
func marshalStored(msg *models.Message) ([]byte, error) {
	stored := *msg
	stored.Reply = nil
	return json.Marshal(&stored)
}

// Publish sends a change event on a room or control channel.
func (s *RedisStore) Publish(ctx context.Context, channel string, ev chat.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe opens a live event stream for one channel.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) (chat.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channel)

	// Confirm the subscription before returning so no event published after
	// this call is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan chat.Event, 32),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan chat.Event
}

func (r *redisSubscription) pump() {
	defer close(r.events)
	for msg := range r.pubsub.Channel() {
		var ev chat.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		r.events <- ev
	}
}

func (r *redisSubscription) Events() <-chan chat.Event {
	return r.events
}

func (r *redisSubscription) Close() error {
	return r.pubsub.Close()
}

// wordRegex matches word characters for search indexing.
var wordRegex = regexp.MustCompile(`\w+`)

// IndexMessage indexes a message's words for search.
func (s *RedisStore) IndexMessage(ctx context.Context, msg *models.Message) error {
	words := wordRegex.FindAllString(strings.ToLower(msg.Content), -1)

	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true

		key := searchWordKey(word)
		// "|" keeps the ref splittable; log keys contain ":".
		ref := fmt.Sprintf("%s|%s", msg.RoomKey, msg.ID)

		s.client.ZAdd(ctx, key, redis.Z{
			Score:  float64(msg.Timestamp),
			Member: ref,
		})
		s.client.Expire(ctx, key, searchTTL)
	}

	return nil
}

// SearchMessages searches indexed messages, newest first, optionally bounded
// to one room log and to timestamps after a cursor.
func (s *RedisStore) SearchMessages(ctx context.Context, tokens []string, limit int, after int64, roomFilter string) ([]models.Message, error) {
	if len(tokens) == 0 {
		return []models.Message{}, nil
	}

	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = searchWordKey(t)
	}

	minScore := "-inf"
	if after > 0 {
		minScore = fmt.Sprintf("(%d", after)
	}

	var refs []string
	if len(keys) == 1 {
		refs, _ = s.client.ZRevRangeByScore(ctx, keys[0], &redis.ZRangeBy{
			Min:   minScore,
			Max:   "+inf",
			Count: int64(limit * 3), // fetch extra for filtering
		}).Result()
	} else {
		tempKey := fmt.Sprintf("search:temp:%d", time.Now().UnixNano())

		s.client.ZInterStore(ctx, tempKey, &redis.ZStore{
			Keys:      keys,
			Aggregate: "MIN",
		})
		s.client.Expire(ctx, tempKey, 10*time.Second)

		refs, _ = s.client.ZRevRangeByScore(ctx, tempKey, &redis.ZRangeBy{
			Min:   minScore,
			Max:   "+inf",
			Count: int64(limit * 3),
		}).Result()

		s.client.Del(ctx, tempKey)
	}

	messages := make([]models.Message, 0, limit)
	for _, ref := range refs {
		parts := strings.SplitN(ref, "|", 2)
		if len(parts) != 2 {
			continue
		}
		logKey, msgID := parts[0], parts[1]

		if roomFilter != "" && logKey != roomFilter {
			continue
		}

		msg, err := s.ByID(ctx, logKey, msgID)
		if err != nil || msg == nil {
			continue // message deleted or expired
		}

		messages = append(messages, *msg)

		if len(messages) >= limit {
			break
		}
	}

	return messages, nil
}
