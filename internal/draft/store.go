package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists one draft per owner across requests.
type Store interface {
	Get(ctx context.Context, owner string) (Draft, error)
	Set(ctx context.Context, owner string, field Field, value json.RawMessage) (Draft, error)
	Clear(ctx context.Context, owner string) error
}

// RedisStore keeps each draft in a hash keyed by owner. Every write pushes the
// expiry forward, so a draft nobody touches for ttl disappears on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

const updatedAtField = "updated_at"

func key(owner string) string {
	return "draft:" + owner
}

func (s *RedisStore) Get(ctx context.Context, owner string) (Draft, error) {
	vals, err := s.client.HGetAll(ctx, key(owner)).Result()
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}

	var d Draft
	for name, raw := range vals {
		if name == updatedAtField {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				d.UpdatedAt = ts
			}
			continue
		}
		f, err := ParseField(name)
		if err != nil {
			continue
		}
		if d, err = d.Apply(f, json.RawMessage(raw)); err != nil {
			return Draft{}, fmt.Errorf("decode draft field %s: %w", name, err)
		}
	}
	return d, nil
}

func (s *RedisStore) Set(ctx context.Context, owner string, field Field, value json.RawMessage) (Draft, error) {
	current, err := s.Get(ctx, owner)
	if err != nil {
		return Draft{}, err
	}
	updated, err := current.Apply(field, value)
	if err != nil {
		return Draft{}, err
	}
	updated.UpdatedAt = s.now().UTC()

	encoded, err := encodeField(updated, field)
	if err != nil {
		return Draft{}, err
	}

	k := key(owner)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if encoded == "" {
			pipe.HDel(ctx, k, string(field))
		} else {
			pipe.HSet(ctx, k, string(field), encoded)
		}
		pipe.HSet(ctx, k, updatedAtField, updated.UpdatedAt.Format(time.RFC3339Nano))
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return Draft{}, fmt.Errorf("save draft field %s: %w", field, err)
	}
	return updated, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, key(owner)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// encodeField returns the stored JSON for field, or "" when the field is now empty.
func encodeField(d Draft, f Field) (string, error) {
	var v any
	switch f {
	case FieldService:
		v = d.ServiceID
	case FieldAddon:
		if d.AddonID == "" {
			return "", nil
		}
		v = d.AddonID
	case FieldDentist:
		v = d.DentistID
	case FieldDate:
		v = d.Date
	case FieldSlots:
		v = d.SlotIDs
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode draft field %s: %w", f, err)
	}
	return string(b), nil
}
