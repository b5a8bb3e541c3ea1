package dataset

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
)

// ExtractText 按扩展名或内容类型提取纯文本
// pdf/docx/html 使用 eino 解析器，其余按 UTF-8 文本处理
func ExtractText(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	p, err := newParser(ctx, fileName, contentType)
	if err != nil {
		return "", err
	}
	if p == nil {
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), "�"), nil
		}
		return string(data), nil
	}

	docs, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// newParser 选择解析器，纯文本返回 nil
func newParser(ctx context.Context, fileName, contentType string) (einoparser.Parser, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	ct := strings.ToLower(contentType)

	switch {
	case ext == ".pdf" || strings.Contains(ct, "pdf"):
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case ext == ".docx" || strings.Contains(ct, "wordprocessingml"):
		return docx.NewDocxParser(ctx, &docx.Config{
			ToSections:     false,
			IncludeHeaders: false,
			IncludeTables:  true,
		})
	case ext == ".html" || ext == ".htm" || strings.Contains(ct, "text/html"):
		bodySelector := "body"
		return html.NewParser(ctx, &html.Config{Selector: &bodySelector})
	default:
		return nil, nil
	}
}
