package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/askql-systems/askql/pkg/types"
)

const jobUpdateStream = "events:job-updates"

// PublishJobUpdate publishes a job update to Redis Streams so relays in other
// server processes can forward it to their local subscribers.
func (p *RedisProvider) PublishJobUpdate(ctx context.Context, update types.JobUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.prefix + jobUpdateStream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
}

// SubscribeJobUpdates watches for job updates published by any instance.
// The handler is called for each update. This blocks until ctx is cancelled.
func (p *RedisProvider) SubscribeJobUpdates(ctx context.Context, handler func(types.JobUpdate)) error {
	stream := p.prefix + jobUpdateStream
	lastID := "$" // only new messages

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := p.client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   10,
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		for _, result := range results {
			for _, msg := range result.Messages {
				lastID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				var update types.JobUpdate
				if err := json.Unmarshal([]byte(data), &update); err != nil {
					continue
				}
				handler(update)
			}
		}
	}
}
