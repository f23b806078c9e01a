package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "result:"

// ResultStore は処理結果をTTL付きでRedisに保存します。
// TTL経過後のキーは未書き込みのキーと区別できません。
type ResultStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultStore は ResultStore を作成します。
func NewResultStore(rdb *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Put は処理結果を保存します。同一IDへの再書き込みは上書きとなるため、
// 再配送による重複処理でも結果は壊れません。
func (s *ResultStore) Put(ctx context.Context, processingID string, record *ResultRecord) error {
	if processingID == "" {
		return fmt.Errorf("processingID is required")
	}
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, resultKey(processingID), payload, s.ttl).Err()
}

// Get は処理結果を取得します。存在しない・期限切れの場合は (nil, nil) を返します。
func (s *ResultStore) Get(ctx context.Context, processingID string) (*ResultRecord, error) {
	if processingID == "" {
		return nil, fmt.Errorf("processingID is required")
	}
	data, err := s.rdb.Get(ctx, resultKey(processingID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record ResultRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func resultKey(id string) string {
	return resultKeyPrefix + id
}
