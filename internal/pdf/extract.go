package pdf

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractNative はpdfcpuを利用してPDFからテキストを抽出します。
// pypdf 相当のネイティブ抽出パスで、mistral 指定時のフォールバック先でもあります。
func extractNative(content []byte) (*TextExtraction, error) {
	if mt := mimetype.Detect(content); !mt.Is("application/pdf") {
		return nil, newError("UNSUPPORTED_PDF", fmt.Sprintf("unsupported content type: %s", mt.String()), nil)
	}

	ctx, err := pdfapi.ReadContext(bytes.NewReader(content), model.NewDefaultConfiguration())
	if err != nil {
		return nil, newError("UNSUPPORTED_PDF", "failed to read PDF", err)
	}
	if err := pdfapi.ValidateContext(ctx); err != nil {
		return nil, newError("UNSUPPORTED_PDF", "failed to validate PDF", err)
	}

	pageCount := ctx.PageCount

	var builder strings.Builder
	for page := 1; page <= pageCount; page++ {
		reader, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return nil, newError("EXTRACTION_FAILED", fmt.Sprintf("failed to extract page %d", page), err)
		}
		if reader == nil {
			builder.WriteString("\n")
			continue
		}
		raw, err := io.ReadAll(reader)
		if err != nil {
			return nil, newError("EXTRACTION_FAILED", fmt.Sprintf("failed to read page %d content", page), err)
		}
		builder.WriteString(contentStreamText(raw))
		builder.WriteString("\n")
	}

	text := strings.TrimSpace(builder.String())
	metadata := map[string]any{
		"pages": pageCount,
	}

	return &TextExtraction{
		Text:       text,
		Markdown:   textToMarkdown(text),
		PageCount:  pageCount,
		Metadata:   metadata,
		ParserUsed: ParserPyPDF,
	}, nil
}

// contentStreamText はページのコンテンツストリームからテキスト描画命令の
// リテラル文字列を取り出します。レイアウト再現はせず、改行は Td/TD/T* 相当の
// 位置移動を目安に挿入します。
func contentStreamText(data []byte) string {
	var out strings.Builder
	i := 0
	for i < len(data) {
		switch data[i] {
		case '(':
			literal, next := parseLiteralString(data, i)
			out.WriteString(literal)
			i = next
		case 'T':
			// Td / TD / T* の直後は新しい行とみなす
			if i+1 < len(data) {
				switch data[i+1] {
				case 'd', 'D', '*':
					if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
						out.WriteString("\n")
					}
					i += 2
					continue
				}
			}
			i++
		default:
			i++
		}
	}
	return out.String()
}

// parseLiteralString は data[start] == '(' からPDFリテラル文字列を読み取り、
// デコード済み文字列と次の読み取り位置を返します。
func parseLiteralString(data []byte, start int) (string, int) {
	var out strings.Builder
	depth := 1
	i := start + 1
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				i++
				continue
			}
			i++
			switch data[i] {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b':
				out.WriteByte('\b')
			case 'f':
				out.WriteByte('\f')
			case '(', ')', '\\':
				out.WriteByte(data[i])
			default:
				if data[i] >= '0' && data[i] <= '7' {
					val := 0
					digits := 0
					for digits < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7' {
						val = val*8 + int(data[i]-'0')
						i++
						digits++
					}
					out.WriteByte(byte(val))
					continue
				}
				out.WriteByte(data[i])
			}
			i++
		case '(':
			depth++
			out.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				out.WriteByte(c)
			}
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), i
}

// textToMarkdown はプレーンテキストを簡易的なMarkdownへ変換します。
func textToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	markdownLines := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			markdownLines = append(markdownLines, "")
			continue
		}

		switch {
		case len(line) < 100 && isUpperLine(line):
			// 大文字のみの短い行は見出しとみなす
			markdownLines = append(markdownLines, "## "+titleCase(line))
		case strings.HasSuffix(line, ":") && len(line) < 80:
			markdownLines = append(markdownLines, "### "+line)
		case strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*"):
			markdownLines = append(markdownLines, line)
		default:
			markdownLines = append(markdownLines, line)
		}
	}

	return strings.Join(markdownLines, "\n")
}

var (
	markdownHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	markdownBoldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	markdownItalicRe = regexp.MustCompile(`\*(.*?)\*`)
	markdownCodeRe   = regexp.MustCompile("`(.*?)`")
	markdownLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
)

// markdownToText はMarkdownの装飾を取り除きプレーンテキストを返します。
func markdownToText(markdown string) string {
	text := markdownHeaderRe.ReplaceAllString(markdown, "")
	text = markdownBoldRe.ReplaceAllString(text, "$1")
	text = markdownItalicRe.ReplaceAllString(text, "$1")
	text = markdownCodeRe.ReplaceAllString(text, "$1")
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// isUpperLine は行が大文字のみで構成されるか判定します（cased文字を1つ以上含むこと）。
func isUpperLine(line string) bool {
	hasCased := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

func titleCase(line string) string {
	words := strings.Fields(strings.ToLower(line))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
