package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/testutil/mediumtest"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFieldUpdate(t *testing.T) {
	testlog.Start(t)
	update := fieldUpdate(map[string]string{"hash_0": "YQ==", "sync_status": "ACK"}, []string{"hash_1", "hash_0"})
	sets, ok := update["$set"].(bson.M)
	if !ok || sets["fields.hash_0"] != "YQ==" || sets["fields.sync_status"] != "ACK" {
		t.Fatalf("unexpected $set: %v", update["$set"])
	}
	unsets, ok := update["$unset"].(bson.M)
	if !ok || len(unsets) != 1 {
		t.Fatalf("unexpected $unset: %v", update["$unset"])
	}
	if _, ok := unsets["fields.hash_1"]; !ok {
		t.Fatalf("hash_1 should be unset: %v", unsets)
	}
	if len(fieldUpdate(nil, nil)) != 0 {
		t.Fatalf("empty update should be empty")
	}
}

func TestNonNil(t *testing.T) {
	testlog.Start(t)
	if b := nonNil(nil); b == nil || len(b) != 0 {
		t.Fatalf("nonNil(nil) got=%v", b)
	}
}

func TestMongoConformance(t *testing.T) {
	testlog.Start(t)
	uri := os.Getenv("COVERT_MONGO_URI")
	if uri == "" {
		t.Skip("COVERT_MONGO_URI not set")
	}
	seq := 0
	mediumtest.Run(t, func(t *testing.T, ids []string) medium.Medium {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		seq++
		s, err := Dial(ctx, uri, "covertfs_test", fmt.Sprintf("objects_%d_%d", time.Now().UnixNano(), seq))
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			_ = s.Drop(ctx)
			_ = s.Close(ctx)
		})
		for _, id := range ids {
			if err := s.Create(ctx, id, nil); err != nil {
				t.Fatalf("create %s: %v", id, err)
			}
		}
		return s
	}, mediumtest.Options{})
}
