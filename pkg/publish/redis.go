// Package publish pushes verification results to redis for dashboards and
// run history. Publishing is optional; a run without a configured redis
// address never touches this package.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netvalid/vlanpath/pkg/vlantest"
)

// resultStreamTTL caps how long a run's result stream is kept.
const resultStreamTTL = 30 * 24 * time.Hour

// runIndexKey is the hash of known runs: run ID -> summary line.
const runIndexKey = "vlanpath:runs"

// Publisher writes result rows to a redis stream per run.
type Publisher struct {
	client *redis.Client
	runID  string
}

// New connects to redis and verifies the connection. runID names the result
// stream; the caller typically uses a timestamp.
func New(ctx context.Context, addr, password string, db int, runID string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return &Publisher{client: client, runID: runID}, nil
}

// StreamKey returns the redis stream this publisher writes to.
func (p *Publisher) StreamKey() string {
	return "vlanpath:results:" + p.runID
}

// PublishHost appends one host's result rows to the run stream.
func (p *Publisher) PublishHost(ctx context.Context, host string, results []vlantest.UplinkTestResult) error {
	stream := p.StreamKey()
	for _, r := range results {
		values := map[string]interface{}{
			"host":    r.Host,
			"switch":  r.Switch,
			"uplink":  r.Uplink,
			"vlan":    r.VlanID,
			"status":  string(r.Status),
			"tx":      r.Transmitted,
			"rx":      r.Received,
			"message": r.Message,
		}
		if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
			return fmt.Errorf("publishing result for %s: %w", host, err)
		}
	}
	return nil
}

// Finish records the run summary in the run index and sets the stream TTL.
func (p *Publisher) Finish(ctx context.Context, summary vlantest.Summary) error {
	if err := p.client.HSet(ctx, runIndexKey, p.runID, summary.String()).Err(); err != nil {
		return fmt.Errorf("recording run summary: %w", err)
	}
	if err := p.client.Expire(ctx, p.StreamKey(), resultStreamTTL).Err(); err != nil {
		return fmt.Errorf("setting stream TTL: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
