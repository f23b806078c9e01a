package jobs

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

// EntryStream はコンシューマーが利用するストリーム操作の契約です。
type EntryStream interface {
	ReadGroup(ctx context.Context, count int64, block time.Duration) ([]Entry, error)
	Ack(ctx context.Context, entryID string) error
}

// Strategy はワーカーが呼び出す処理戦略の契約です。
// 抽出・要約の中身には関知せず、同期呼び出しと失敗の可能性だけを仮定します。
type Strategy interface {
	Process(ctx context.Context, content []byte, filename string, parser pdf.ParserType) (*pdf.ProcessingResult, error)
}

// ResultWriter は処理結果の保存先の契約です。
type ResultWriter interface {
	Put(ctx context.Context, processingID string, record *ResultRecord) error
}

// Consumer はコンシューマーグループの一員としてストリームを購読し、
// ジョブを1件ずつ処理してACKするワーカーループです。
type Consumer struct {
	stream   EntryStream
	strategy Strategy
	results  ResultWriter
	reporter StatusReporter
	logger   *log.Logger

	readBlock    time.Duration
	errorBackoff time.Duration
}

// NewConsumer は Consumer を初期化します。
func NewConsumer(stream EntryStream, strategy Strategy, results ResultWriter, reporter StatusReporter, logger *log.Logger) (*Consumer, error) {
	if stream == nil {
		return nil, errors.New("stream is nil")
	}
	if strategy == nil {
		return nil, errors.New("strategy is nil")
	}
	if results == nil {
		return nil, errors.New("results is nil")
	}
	if reporter == nil {
		return nil, errors.New("reporter is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{
		stream:       stream,
		strategy:     strategy,
		results:      results,
		reporter:     reporter,
		logger:       logger,
		readBlock:    time.Second,
		errorBackoff: 5 * time.Second,
	}, nil
}

// Run はコンテキストがキャンセルされるまでジョブを消費し続けます。
// ブロッキング読み取りの失敗は致命的とせず、バックオフして再試行します。
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Printf("consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Printf("consumer stopped")
			return
		}

		entries, err := c.stream.ReadGroup(ctx, 1, c.readBlock)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Printf("consumer stopped")
				return
			}
			c.logger.Printf("stream read failed: %v", err)
			c.sleep(ctx, c.errorBackoff)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		for _, entry := range entries {
			c.handleEntry(ctx, entry)
		}
	}
}

// handleEntry は配送された1件を処理します。成功・失敗にかかわらず
// 最後に必ずACKします。
func (c *Consumer) handleEntry(ctx context.Context, entry Entry) {
	payload, content, err := decodeTaskPayload(entry)
	if err != nil {
		// 解読不能なエントリはストリームを塞がないよう破棄する
		c.logger.Printf("dropping malformed entry: %v", err)
		c.ack(ctx, entry.ID)
		return
	}

	processingID := payload.ProcessingID
	parser := pdf.ParseParserType(string(payload.Parser))

	c.report(ctx, processingID, statusUpdate(StatusProcessing, "Processing PDF..."))

	result, err := c.strategy.Process(ctx, content, payload.Filename, parser)
	if err != nil {
		c.fail(ctx, entry.ID, processingID, err)
		return
	}
	if result == nil || result.Extraction == nil || result.Analysis == nil {
		c.fail(ctx, entry.ID, processingID, errors.New("strategy returned incomplete result"))
		return
	}

	sanitizeResult(result)

	record := &ResultRecord{
		Markdown:       result.Extraction.Markdown,
		Summary:        result.Analysis.Summary,
		ParserUsed:     result.ParserUsed,
		Filename:       result.Filename,
		ProcessingTime: result.ProcessingTime,
	}
	if err := c.results.Put(ctx, processingID, record); err != nil {
		c.fail(ctx, entry.ID, processingID, err)
		return
	}

	completed := statusUpdate(StatusCompleted, "PDF processing completed successfully")
	completed.Parser = &result.ParserUsed
	completed.Result = result
	c.report(ctx, processingID, completed)

	c.ack(ctx, entry.ID)
	c.logger.Printf("job completed id=%s file=%s parser=%s duration=%.2fs",
		processingID, result.Filename, result.ParserUsed, result.ProcessingTime)
}

// fail はジョブを失敗として記録します。エントリはACKされるため
// 再配送による再試行は行われません。
func (c *Consumer) fail(ctx context.Context, entryID, processingID string, cause error) {
	c.logger.Printf("job failed id=%s: %v", processingID, cause)
	c.report(ctx, processingID, statusUpdate(StatusFailed, "Processing failed: "+cause.Error()))
	c.ack(ctx, entryID)
}

// report はステータス更新を通知します。通知の失敗はログに残して握りつぶし、
// 処理中のエントリを中断させません。
func (c *Consumer) report(ctx context.Context, processingID string, update Update) {
	if err := c.reporter.Report(ctx, processingID, update); err != nil {
		c.logger.Printf("status update failed id=%s: %v", processingID, err)
	}
}

func (c *Consumer) ack(ctx context.Context, entryID string) {
	if err := c.stream.Ack(ctx, entryID); err != nil {
		c.logger.Printf("ack failed entry=%s: %v", entryID, err)
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func statusUpdate(status Status, message string) Update {
	return Update{
		Status:  &status,
		Message: &message,
	}
}

// sanitizeResult はテキスト出力をUTF-8として正規化します。
// 不正なバイト列は置換文字に差し替え、JSONシリアライズで落ちないようにします。
func sanitizeResult(result *pdf.ProcessingResult) {
	if result == nil {
		return
	}
	if result.Extraction != nil {
		result.Extraction.Text = sanitizeText(result.Extraction.Text)
		result.Extraction.Markdown = sanitizeText(result.Extraction.Markdown)
	}
	if result.Analysis != nil {
		result.Analysis.Summary = sanitizeText(result.Analysis.Summary)
		for i, point := range result.Analysis.KeyPoints {
			result.Analysis.KeyPoints[i] = sanitizeText(point)
		}
		for i, topic := range result.Analysis.Topics {
			result.Analysis.Topics[i] = sanitizeText(topic)
		}
	}
}

func sanitizeText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
