// Package ingestqueue implements the ingestion worker pool's durable job
// queue against Valkey: an LPUSH/BRPOP envelope for ready work, plus a
// ready-at sorted set for delayed re-enqueue on retry backoff.
package ingestqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// ValkeyQueue is both an ingestion.JobQueue producer and an
// ingestion.JobSource consumer.
type ValkeyQueue struct {
	client      valkey.Client
	listKey     string
	delayedKey  string
	logger      *slog.Logger
	jobs        chan ingestion.Job
	pollTimeout time.Duration
}

// NewValkeyQueue constructs the queue and starts its background consume
// and delayed-promotion loops.
func NewValkeyQueue(client valkey.Client, keyPrefix string, logger *slog.Logger) *ValkeyQueue {
	if keyPrefix == "" {
		keyPrefix = "ingestion"
	}
	q := &ValkeyQueue{
		client:      client,
		listKey:     keyPrefix + ":jobs",
		delayedKey:  keyPrefix + ":delayed",
		logger:      logger.With("component", "ingestqueue.valkey"),
		jobs:        make(chan ingestion.Job),
		pollTimeout: 5 * time.Second,
	}
	go q.consume()
	go q.promoteDelayed()
	return q
}

func (q *ValkeyQueue) Jobs() <-chan ingestion.Job { return q.jobs }

func (q *ValkeyQueue) Enqueue(ctx context.Context, job ingestion.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.Do(ctx, q.client.B().Lpush().Key(q.listKey).Element(string(payload)).Build()).Error()
}

// EnqueueDelayed schedules a job to become visible after delaySeconds, via
// a sorted set scored by unix-ready-time; promoteDelayed moves it to the
// live list once its score has passed.
func (q *ValkeyQueue) EnqueueDelayed(ctx context.Context, job ingestion.Job, delaySeconds int) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	readyAt := float64(time.Now().Add(time.Duration(delaySeconds) * time.Second).Unix())
	return q.client.Do(ctx, q.client.B().Zadd().Key(q.delayedKey).ScoreMember().ScoreMember(readyAt, string(payload)).Build()).Error()
}

func (q *ValkeyQueue) consume() {
	ctx := context.Background()
	for {
		resp := q.client.Do(ctx, q.client.B().Brpop().Key(q.listKey).Timeout(q.pollTimeout.Seconds()).Build())
		arr, err := resp.ToArray()
		if err != nil {
			if valkey.IsValkeyNil(err) {
				continue
			}
			q.logger.Error("brpop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(arr) != 2 {
			continue
		}
		payload, err := arr[1].ToString()
		if err != nil {
			continue
		}
		var job ingestion.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			q.logger.Error("malformed ingestion job payload", "error", err)
			continue
		}
		q.jobs <- job
	}
}

func (q *ValkeyQueue) promoteDelayed() {
	ctx := context.Background()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		now := float64(time.Now().Unix())
		resp := q.client.Do(ctx, q.client.B().Zrangebyscore().Key(q.delayedKey).Min("-inf").Max(strconv.FormatFloat(now, 'f', 0, 64)).Build())
		members, err := resp.AsStrSlice()
		if err != nil || len(members) == 0 {
			continue
		}
		for _, payload := range members {
			if err := q.client.Do(ctx, q.client.B().Zrem().Key(q.delayedKey).Member(payload).Build()).Error(); err != nil {
				continue
			}
			if err := q.client.Do(ctx, q.client.B().Lpush().Key(q.listKey).Element(payload).Build()).Error(); err != nil {
				q.logger.Error("failed to promote delayed ingestion job", "error", err)
			}
		}
	}
}

var _ ingestion.JobQueue = (*ValkeyQueue)(nil)
var _ ingestion.JobSource = (*ValkeyQueue)(nil)
