// Package jobs は非同期処理ジョブの投入・配送・状態管理を提供します。
package jobs

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

// Status はジョブの処理状態を表します。
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal は終端状態（completed / failed）かどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record はジョブの現在状態を表します。
// プロセス内レジストリにのみ保持され、再起動で失われます。
type Record struct {
	ProcessingID string         `json:"processing_id"`
	Status       Status         `json:"status"`
	Message      string         `json:"message"`
	Filename     string         `json:"filename,omitempty"`
	Parser       pdf.ParserType `json:"parser,omitempty"`
	Result       any            `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Update はレコードへの部分更新を表します。nilのフィールドは変更されません。
type Update struct {
	Status  *Status         `json:"status,omitempty"`
	Message *string         `json:"message,omitempty"`
	Parser  *pdf.ParserType `json:"parser,omitempty"`
	Result  any             `json:"result,omitempty"`
}

// ResultRecord は結果ストアへ保存される最終成果物です。
// 作成後は更新されず、TTL経過で自動的に消えます。
type ResultRecord struct {
	Markdown       string         `json:"markdown"`
	Summary        string         `json:"summary"`
	ParserUsed     pdf.ParserType `json:"parser_used"`
	Filename       string         `json:"filename"`
	ProcessingTime float64        `json:"processing_time"`
}

// TaskPayload はストリームに載せるジョブ本体です。
// バイナリ内容はJSON安全にするため16進文字列で運びます。
type TaskPayload struct {
	Filename     string         `json:"filename"`
	Content      string         `json:"content"`
	ProcessingID string         `json:"processing_id"`
	Parser       pdf.ParserType `json:"parser"`
}

// NewTaskPayload はジョブ内容からペイロードを作成します。
func NewTaskPayload(processingID, filename string, content []byte, parser pdf.ParserType) *TaskPayload {
	return &TaskPayload{
		Filename:     filename,
		Content:      hex.EncodeToString(content),
		ProcessingID: processingID,
		Parser:       parser,
	}
}

// Encode はペイロードをJSONへ変換します。
func (p *TaskPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// ContentBytes は16進エンコードされた内容を元のバイト列へ復元します。
func (p *TaskPayload) ContentBytes() ([]byte, error) {
	content, err := hex.DecodeString(p.Content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding: %w", err)
	}
	return content, nil
}

// decodeTaskPayload はストリームエントリからペイロードと元のバイト列を復元します。
// 構造的に不正なエントリはエラーとなり、呼び出し側でACKして破棄します。
func decodeTaskPayload(entry Entry) (*TaskPayload, []byte, error) {
	if entry.ProcessingID == "" || entry.Data == "" {
		return nil, nil, fmt.Errorf("entry %s is missing required fields", entry.ID)
	}

	var payload TaskPayload
	if err := json.Unmarshal([]byte(entry.Data), &payload); err != nil {
		return nil, nil, fmt.Errorf("entry %s has invalid payload: %w", entry.ID, err)
	}
	if payload.ProcessingID == "" {
		payload.ProcessingID = entry.ProcessingID
	}
	if payload.Filename == "" || payload.Content == "" {
		return nil, nil, fmt.Errorf("entry %s payload is incomplete", entry.ID)
	}

	content, err := payload.ContentBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("entry %s: %w", entry.ID, err)
	}
	return &payload, content, nil
}
