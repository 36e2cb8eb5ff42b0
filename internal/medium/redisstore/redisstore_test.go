package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/testutil/mediumtest"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
	"github.com/redis/go-redis/v9"
)

func TestKeyLayout(t *testing.T) {
	testlog.Start(t)
	s := New(nil, "ns")
	if s.objectsKey() != "ns:objects" || s.contentKey("a0") != "ns:content:a0" || s.fieldsKey("a0") != "ns:fields:a0" {
		t.Fatalf("unexpected keys: %s %s %s", s.objectsKey(), s.contentKey("a0"), s.fieldsKey("a0"))
	}
}

func TestRedisConformance(t *testing.T) {
	testlog.Start(t)
	addr := os.Getenv("COVERT_REDIS_ADDR")
	if addr == "" {
		t.Skip("COVERT_REDIS_ADDR not set")
	}
	seq := 0
	mediumtest.Run(t, func(t *testing.T, ids []string) medium.Medium {
		ctx := context.Background()
		seq++
		ns := fmt.Sprintf("covertfs-test-%d-%d", time.Now().UnixNano(), seq)
		s, err := Dial(ctx, &redis.Options{Addr: addr}, ns)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() {
			_ = s.Drop(context.Background())
			_ = s.Close()
		})
		for _, id := range ids {
			if err := s.Create(ctx, id, nil); err != nil {
				t.Fatalf("create %s: %v", id, err)
			}
		}
		return s
	}, mediumtest.Options{})
}
