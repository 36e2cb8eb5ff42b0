// Package redisstore keeps medium objects in Redis.
//
// Under namespace ns, the object set is the set <ns>:objects, content is the
// string <ns>:content:<id>, and fields are the hash <ns>:fields:<id>.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ns  string
}

func New(rdb *redis.Client, namespace string) *Store {
	return &Store{rdb: rdb, ns: namespace}
}

// Dial connects with opts and verifies the server answers.
func Dial(ctx context.Context, opts *redis.Options, namespace string) (*Store, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return New(rdb, namespace), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) objectsKey() string { return s.ns + ":objects" }
func (s *Store) contentKey(id string) string { return s.ns + ":content:" + id }
func (s *Store) fieldsKey(id string) string { return s.ns + ":fields:" + id }

func (s *Store) exists(ctx context.Context, id string) error {
	ok, err := s.rdb.SIsMember(ctx, s.objectsKey(), id).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", medium.ErrNotFound, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.objectsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, s.contentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []byte{}, nil
	}
	return data, err
}

func (s *Store) WriteContent(ctx context.Context, id string, data []byte) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.contentKey(id), data, 0).Err()
}

// SwapContent runs the compare and the write in one WATCH/MULTI transaction.
// A concurrent writer aborts the transaction, which reports false.
func (s *Store) SwapContent(ctx context.Context, id string, prev, next []byte) (bool, error) {
	if err := s.exists(ctx, id); err != nil {
		return false, err
	}
	key := s.contentKey(id)
	swapped := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !bytes.Equal(cur, prev) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *Store) ReadFields(ctx context.Context, id string) (map[string]string, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	return s.rdb.HGetAll(ctx, s.fieldsKey(id)).Result()
}

func (s *Store) WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error {
	for k := range set {
		if err := medium.ValidateFieldName(k); err != nil {
			return err
		}
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	key := s.fieldsKey(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(remove) > 0 {
			pipe.HDel(ctx, key, remove...)
		}
		if len(set) > 0 {
			pairs := make([]any, 0, 2*len(set))
			for k, v := range set {
				pairs = append(pairs, k, v)
			}
			pipe.HSet(ctx, key, pairs...)
		}
		return nil
	})
	return err
}

func (s *Store) Create(ctx context.Context, id string, content []byte) error {
	if id == "" {
		return medium.ErrInvalidID
	}
	added, err := s.rdb.SAdd(ctx, s.objectsKey(), id).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return fmt.Errorf("%w: %s", medium.ErrExists, id)
	}
	return s.rdb.Set(ctx, s.contentKey(id), content, 0).Err()
}

// Drop deletes every key under the namespace.
func (s *Store) Drop(ctx context.Context) error {
	ids, err := s.rdb.SMembers(ctx, s.objectsKey()).Result()
	if err != nil {
		return err
	}
	keys := []string{s.objectsKey()}
	for _, id := range ids {
		keys = append(keys, s.contentKey(id), s.fieldsKey(id))
	}
	return s.rdb.Del(ctx, keys...).Err()
}
