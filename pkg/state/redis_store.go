package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// maxTxRetries bounds optimistic-lock retries for UpdateSubsection.
const maxTxRetries = 8

// RedisStore keeps the record as a JSON string under a single Redis key.
// UpdateSubsection runs a WATCH/MULTI transaction so concurrent writers to
// different subsections never drop each other's slots.
type RedisStore struct {
	client redis.UniversalClient
	cfg    config
}

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, cfg: applyOptions(opts)}
}

func (s *RedisStore) Key() string { return s.cfg.key }

func (s *RedisStore) Replace(ctx context.Context, record Record) error {
	if err := s.cfg.checkRecord(record); err != nil {
		return err
	}
	if record == nil {
		record = Record{}
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return wrapPersistence("replace", "", fmt.Errorf("encode record: %w", err))
	}
	return wrapPersistence("replace", "", s.client.Set(ctx, s.cfg.key, raw, 0).Err())
}

func (s *RedisStore) Read(ctx context.Context) (Record, bool, error) {
	raw, err := s.client.Get(ctx, s.cfg.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	return record, true, nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	return wrapPersistence("delete", "", s.client.Del(ctx, s.cfg.key).Err())
}

func (s *RedisStore) UpdateSubsection(ctx context.Context, name string, data any) error {
	if err := s.cfg.checkSubsection(name); err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.cfg.key).Bytes()
		record := Record{}
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if record, err = decodeRecord(raw); err != nil {
				return err
			}
		}
		record[name] = data
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.cfg.key, encoded, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.cfg.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return wrapPersistence("update", name, err)
	}
	return wrapPersistence("update", name, fmt.Errorf("too many concurrent writers: %w", redis.TxFailedErr))
}

func decodeRecord(raw []byte) (Record, error) {
	record := Record{}
	if len(raw) == 0 {
		return record, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if record == nil {
		record = Record{}
	}
	return record, nil
}
