package main

import (
	"context"
	"fmt"

	"github.com/danmuck/covertfs/internal/config"
	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/medium/drive"
	"github.com/danmuck/covertfs/internal/medium/localfs"
	"github.com/danmuck/covertfs/internal/medium/mongostore"
	"github.com/danmuck/covertfs/internal/medium/redisstore"
	"github.com/redis/go-redis/v9"
)

// openMedium connects the backend a profile names. The returned close func is
// never nil.
func openMedium(ctx context.Context, p config.Profile) (medium.Medium, func() error, error) {
	noop := func() error { return nil }
	mc := p.Medium
	switch mc.Kind {
	case config.MediumLocalFS:
		s, err := localfs.Open(mc.Root, localfs.Options{Watch: mc.Watch})
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.MediumRedis:
		s, err := redisstore.Dial(ctx, &redis.Options{Addr: mc.Addr, Password: mc.Password, DB: mc.DB}, mc.Namespace)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.MediumMongo:
		s, err := mongostore.Dial(ctx, mc.URI, mc.Database, mc.Collection)
		if err != nil {
			return nil, noop, err
		}
		return s, func() error { return s.Close(context.Background()) }, nil
	case config.MediumDrive:
		s, err := drive.Open(ctx, mc.Credentials, mc.Folder)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown medium kind %q", config.ErrInvalid, mc.Kind)
	}
}
