package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

const extractionPrompt = "Extract all text from this PDF and format as clean markdown. Return only the markdown content."

const analysisPromptFormat = `Analyze this document and respond in JSON format:
{
    "summary": "2-3 sentence summary",
    "key_points": ["point1", "point2", "point3"],
    "sentiment": "positive/negative/neutral",
    "topics": ["topic1", "topic2"],
    "confidence_score": 0.85
}

Document: %s`

// geminiClient はGemini generateContent APIの薄いクライアントです。
type geminiClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func newGeminiClient(apiKey, model string) *geminiClient {
	return &geminiClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (g *geminiClient) available() bool {
	return g != nil && g.apiKey != ""
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generate はparts列を送信し、最初の候補テキストを返します。
func (g *geminiClient) generate(ctx context.Context, parts []geminiPart) (string, error) {
	if !g.available() {
		return "", newError("GEMINI_UNAVAILABLE", "Gemini API key is not configured", nil)
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf(geminiEndpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("gemini response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError("GEMINI_ERROR", fmt.Sprintf("gemini returned status %d", resp.StatusCode), nil)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini response parse failed: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", newError("GEMINI_ERROR", "gemini returned no candidates", nil)
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

// extract はPDFをインラインで送信し、Markdownとしてテキスト抽出します。
func (g *geminiClient) extract(ctx context.Context, content []byte) (*TextExtraction, error) {
	markdown, err := g.generate(ctx, []geminiPart{
		{Text: extractionPrompt},
		{InlineData: &geminiInlineData{
			MimeType: "application/pdf",
			Data:     base64.StdEncoding.EncodeToString(content),
		}},
	})
	if err != nil {
		return nil, err
	}

	return &TextExtraction{
		Text:      markdownToText(markdown),
		Markdown:  markdown,
		PageCount: 1,
		Metadata: map[string]any{
			"extraction_method": "gemini_flash",
		},
		ParserUsed: ParserGeminiFlash,
	}, nil
}

// analyze は抽出済みテキストを要約・分析します。
// Geminiが利用できない・応答が壊れている場合も縮退した分析結果を返し、
// ジョブ自体は失敗させません。
func (g *geminiClient) analyze(ctx context.Context, text, markdown string) *Analysis {
	if !g.available() {
		return fallbackAnalysis()
	}

	document := markdown
	if document == "" {
		document = text
	}
	if len(document) > 8000 {
		document = document[:8000]
	}

	response, err := g.generate(ctx, []geminiPart{
		{Text: fmt.Sprintf(analysisPromptFormat, document)},
	})
	if err != nil {
		return fallbackAnalysis()
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(extractJSONBlock(response)), &analysis); err != nil {
		return fallbackAnalysis()
	}
	if analysis.Summary == "" {
		analysis.Summary = "Analysis completed"
	}
	return &analysis
}

// extractJSONBlock は応答テキストからJSON部分を取り出します。
// コードフェンス付き・裸のJSONの両方に対応します。
func extractJSONBlock(response string) string {
	if idx := strings.Index(response, "```json"); idx >= 0 {
		rest := response[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return `{"summary": "Analysis completed", "key_points": ["Text processed"], "sentiment": "neutral", "topics": ["document"], "confidence_score": 0.7}`
}

func fallbackAnalysis() *Analysis {
	return &Analysis{
		Summary:         "Summarization failed, text extracted successfully",
		KeyPoints:       []string{"Text extraction completed"},
		Sentiment:       "neutral",
		Topics:          []string{"document processing"},
		ConfidenceScore: 0.3,
	}
}
