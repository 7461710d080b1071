package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"djbook/pkg/clock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InstanceInfo describes one running API instance.
type InstanceInfo struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Backend   string    `json:"backend"`
	StartedAt time.Time `json:"started_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// InstanceRegistry keeps a TTL'd presence record per instance so operators
// can see which instances share the ban ledger.
type InstanceRegistry struct {
	client redis.UniversalClient
	info   InstanceInfo
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.SugaredLogger
	prefix string
}

func NewInstanceRegistry(client redis.UniversalClient, info InstanceInfo, ttl time.Duration, clk clock.Clock, logger *zap.SugaredLogger) *InstanceRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &InstanceRegistry{
		client: client,
		info:   info,
		ttl:    ttl,
		clock:  clk,
		logger: logger,
		prefix: "djbook:instance:",
	}
}

// Register writes (or refreshes) this instance's presence record.
func (r *InstanceRegistry) Register(ctx context.Context) error {
	info := r.info
	info.LastSeen = r.clock.Now().UTC()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.instanceKey(info.ID), data, r.ttl)
		pipe.SAdd(ctx, r.setKey(), info.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}
	return nil
}

// Run refreshes the record every third of the TTL until ctx is done, then
// unregisters.
func (r *InstanceRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := r.Unregister(cleanup); err != nil {
				r.logger.Warnw("failed to unregister instance", "instance_id", r.info.ID, "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Register(ctx); err != nil {
				r.logger.Warnw("instance heartbeat failed", "instance_id", r.info.ID, "error", err)
			}
		}
	}
}

func (r *InstanceRegistry) Unregister(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.instanceKey(r.info.ID))
		pipe.SRem(ctx, r.setKey(), r.info.ID)
		return nil
	})
	return err
}

// List returns live instances sorted by id. Members whose record expired
// are pruned from the set.
func (r *InstanceRegistry) List(ctx context.Context) ([]InstanceInfo, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	out := make([]InstanceInfo, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, r.instanceKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			r.client.SRem(ctx, r.setKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get instance %s: %w", id, err)
		}

		var info InstanceInfo
		if err := json.Unmarshal(data, &info); err != nil {
			r.logger.Warnw("skipping unreadable instance record", "instance_id", id, "error", err)
			continue
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InstanceRegistry) instanceKey(id string) string {
	return r.prefix + id
}

func (r *InstanceRegistry) setKey() string {
	return "djbook:instances"
}
