// Package pdf はPDFの解析と要約（処理戦略）を提供します。
package pdf

import "strings"

// ParserType はテキスト抽出に使用するパーサーの種別を表します。
type ParserType string

const (
	ParserPyPDF       ParserType = "pypdf"
	ParserGeminiFlash ParserType = "gemini_flash"
	ParserMistral     ParserType = "mistral"
)

// DefaultParser は未指定・不明なパーサー指定時のフォールバック先です。
const DefaultParser = ParserPyPDF

// ParseParserType は文字列をParserTypeに変換します。
// 不明な値は既定のパーサーにフォールバックします（リクエストは拒否しません）。
func ParseParserType(s string) ParserType {
	switch ParserType(strings.TrimSpace(s)) {
	case ParserPyPDF:
		return ParserPyPDF
	case ParserGeminiFlash:
		return ParserGeminiFlash
	case ParserMistral:
		return ParserMistral
	default:
		return DefaultParser
	}
}

// TextExtraction はPDFからのテキスト抽出結果を表します。
type TextExtraction struct {
	Text       string         `json:"text"`
	Markdown   string         `json:"markdown"`
	PageCount  int            `json:"page_count"`
	Metadata   map[string]any `json:"metadata"`
	ParserUsed ParserType     `json:"parser_used"`
}

// Analysis は文書の要約・分析結果を表します。
type Analysis struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	Sentiment       string   `json:"sentiment,omitempty"`
	Topics          []string `json:"topics"`
	ConfidenceScore float64  `json:"confidence_score,omitempty"`
}

// ProcessingResult は1件の処理ジョブの最終成果を表します。
type ProcessingResult struct {
	Extraction     *TextExtraction `json:"extraction"`
	Analysis       *Analysis       `json:"analysis"`
	ProcessingTime float64         `json:"processing_time"`
	Filename       string          `json:"filename"`
	ParserUsed     ParserType      `json:"parser_used"`
}
