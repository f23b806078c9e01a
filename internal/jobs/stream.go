package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldProcessingID = "processing_id"
	fieldData         = "data"
)

// Entry はストリームから配送された1件のレコードです。
type Entry struct {
	ID           string // ストリームが採番したエントリID
	ProcessingID string
	Data         string // TaskPayload のJSON
}

// Stream はRedis Streamsによる永続ジョブストリームです。
// コンシューマーグループで配送し、処理完了後にACKすることで
// at-least-once配送を実現します。
type Stream struct {
	rdb      *redis.Client
	name     string
	group    string
	consumer string
}

// NewStream は Stream を作成します。
func NewStream(rdb *redis.Client, name, group, consumer string) *Stream {
	return &Stream{
		rdb:      rdb,
		name:     name,
		group:    group,
		consumer: consumer,
	}
}

// EnsureGroup はコンシューマーグループを作成します。
// 既に存在する場合（BUSYGROUP）は成功扱いにします。
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.name, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Add はジョブをストリームへ追記し、採番されたエントリIDを返します。
func (s *Stream) Add(ctx context.Context, processingID string, data []byte) (string, error) {
	entryID, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.name,
		Values: map[string]any{
			fieldProcessingID: processingID,
			fieldData:         string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to stream: %w", err)
	}
	return entryID, nil
}

// ReadGroup は未配送のエントリをこのコンシューマーへ配送します。
// blockの間だけ新着を待ち、データがなければ空スライスを返します。
func (s *Stream) ReadGroup(ctx context.Context, count int64, block time.Duration) ([]Entry, error) {
	streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.name, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entry := Entry{ID: msg.ID}
			if v, ok := msg.Values[fieldProcessingID].(string); ok {
				entry.ProcessingID = v
			}
			if v, ok := msg.Values[fieldData].(string); ok {
				entry.Data = v
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Ack は処理済みエントリを確認応答します。
// ACK済みのエントリは同一グループへ再配送されません。
func (s *Stream) Ack(ctx context.Context, entryID string) error {
	if err := s.rdb.XAck(ctx, s.name, s.group, entryID).Err(); err != nil {
		return fmt.Errorf("failed to ack entry %s: %w", entryID, err)
	}
	return nil
}

// Ping はRedis接続を確認します（ヘルスチェック用）。
func (s *Stream) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
