package jobs

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound は指定された処理IDのレコードが存在しないことを表します。
var ErrNotFound = errors.New("processing id not found")

// Registry はジョブの現在状態を保持するプロセス内レジストリです。
// 投入側（ゲートウェイ）とワーカーの双方から並行に書き込まれるため
// ミューテックスで保護します。再起動で内容は失われます。
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewRegistry は Registry を作成します。
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Create は新規レコードを登録します。タイムスタンプはここで採番します。
// 呼び出し側との共有を避けるためコピーを保持します。
func (r *Registry) Create(record *Record) {
	if record == nil || record.ProcessingID == "" {
		return
	}
	now := r.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	copied := *record

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[copied.ProcessingID] = &copied
}

// Get はレコードのコピーを返します。
func (r *Registry) Get(processingID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[processingID]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// Apply は既存レコードへ部分更新をマージします。
// 未知のIDに対しては ErrNotFound を返します。
func (r *Registry) Apply(processingID string, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[processingID]
	if !ok {
		return ErrNotFound
	}

	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Message != nil {
		record.Message = *update.Message
	}
	if update.Parser != nil {
		record.Parser = *update.Parser
	}
	if update.Result != nil {
		record.Result = update.Result
	}
	record.UpdatedAt = r.now().UTC()
	return nil
}

// Len は登録済みレコード数を返します。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
