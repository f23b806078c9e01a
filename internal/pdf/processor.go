package pdf

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/pdf-stream-processor/internal/config"
)

// Service はパーサー種別に応じたテキスト抽出と要約を実行します。
// ワーカーからは処理戦略として同期的に呼び出されます。
type Service struct {
	gemini *geminiClient
	logger *log.Logger
	now    func() time.Time
}

// NewService は Service を初期化します。
func NewService(cfg *config.Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	svc := &Service{
		gemini: newGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel),
		logger: logger,
		now:    time.Now,
	}
	if !svc.gemini.available() {
		logger.Printf("GEMINI_API_KEY not set, summarization will use fallback analysis")
	}
	return svc
}

// Process は指定パーサーでテキストを抽出し、Geminiで要約します。
func (s *Service) Process(ctx context.Context, content []byte, filename string, parser ParserType) (*ProcessingResult, error) {
	start := s.now()

	extraction, err := s.extract(ctx, content, parser)
	if err != nil {
		s.logger.Printf("extraction failed file=%s parser=%s: %v", filename, parser, err)
		return nil, err
	}

	analysis := s.gemini.analyze(ctx, extraction.Text, extraction.Markdown)

	return &ProcessingResult{
		Extraction:     extraction,
		Analysis:       analysis,
		ProcessingTime: s.now().Sub(start).Seconds(),
		Filename:       filename,
		ParserUsed:     extraction.ParserUsed,
	}, nil
}

func (s *Service) extract(ctx context.Context, content []byte, parser ParserType) (*TextExtraction, error) {
	switch parser {
	case ParserPyPDF:
		return extractNative(content)
	case ParserGeminiFlash:
		return s.gemini.extract(ctx, content)
	case ParserMistral:
		// Mistral OCRは未統合。ネイティブ抽出で代替する。
		extraction, err := extractNative(content)
		if err != nil {
			return nil, err
		}
		extraction.ParserUsed = ParserMistral
		extraction.Metadata["note"] = "Mistral fallback to native extraction"
		return extraction, nil
	default:
		return nil, fmt.Errorf("unsupported parser: %s", parser)
	}
}
