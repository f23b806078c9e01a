package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

// EntryAppender はジョブをストリームへ追記できるコンポーネントが実装します。
type EntryAppender interface {
	Add(ctx context.Context, processingID string, data []byte) (string, error)
}

// Gateway はジョブ投入口です。入力を検証し、処理IDを採番し、
// pending状態の登録とストリームへの追記を行います。
type Gateway struct {
	stream   EntryAppender
	registry *Registry
	logger   *log.Logger
}

// NewGateway は Gateway を初期化します。
func NewGateway(stream EntryAppender, registry *Registry, logger *log.Logger) (*Gateway, error) {
	if stream == nil {
		return nil, errors.New("stream is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		stream:   stream,
		registry: registry,
		logger:   logger,
	}, nil
}

// Submit はジョブを受け付けて投入します。
// ステータス登録後のストリーム追記が失敗した場合、レコードはpendingのまま
// 残ります（補償ロールバックは行いません）。
func (g *Gateway) Submit(ctx context.Context, filename string, content []byte, parserValue string) (*Record, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, &pdf.Error{Code: "INVALID_INPUT", Message: "Only PDF files are allowed"}
	}
	if len(content) == 0 {
		return nil, &pdf.Error{Code: "INVALID_INPUT", Message: "Uploaded file is empty"}
	}

	parser := pdf.ParseParserType(parserValue)
	processingID := uuid.NewString()
	message := fmt.Sprintf("PDF uploaded and queued for processing with %s parser", parser)

	record := &Record{
		ProcessingID: processingID,
		Status:       StatusPending,
		Message:      message,
		Filename:     filename,
		Parser:       parser,
	}
	g.registry.Create(record)

	payload, err := NewTaskPayload(processingID, filename, content, parser).Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	entryID, err := g.stream.Add(ctx, processingID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	g.logger.Printf("job enqueued id=%s entry=%s file=%s parser=%s", processingID, entryID, filename, parser)

	return record, nil
}
