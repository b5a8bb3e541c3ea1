package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/llmjson"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	dbmodel "github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// ParsePromptKey 转录解析模板
const ParsePromptKey = "parse_queries_expectations"

// ParseRequest 解析转录请求
type ParseRequest struct {
	Name           string
	Content        string
	SystemBehavior *string
	SourceType     string
}

// ImportFileRequest 上传转录文件请求
type ImportFileRequest struct {
	Name           string
	FileName       string
	ContentType    string
	Data           []byte
	SystemBehavior *string
}

// ParsedItem LLM 提取的测试用例
type ParsedItem struct {
	Query        string `json:"query"`
	Expectations string `json:"expectations"`
}

// ParseTranscript 调用 LLM 将转录解析为查询并创建数据集
func (s *Service) ParseTranscript(ctx context.Context, req *ParseRequest) (*DatasetWithQueries, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || name == "undefined" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: provide transcript content or a file", ErrInvalidInput)
	}

	items, err := s.extractItems(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	inputs := make([]QueryInput, 0, len(items))
	for _, it := range items {
		exp := it.Expectations
		inputs = append(inputs, QueryInput{Query: it.Query, Expectations: &exp})
	}
	queries, err := buildQueries(inputs, 0)
	if err != nil {
		return nil, err
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "text"
	}
	ds := &dbmodel.Dataset{Name: name, SourceType: sourceType, SystemBehavior: trimmedPtr(req.SystemBehavior)}
	if err := s.repo.Datasets.CreateWithQueries(ctx, ds, queries); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	s.logger.Info("transcript parsed", zap.Uint("dataset_id", ds.ID), zap.Int("queries", len(queries)))
	return &DatasetWithQueries{Dataset: ds, Queries: queries}, nil
}

// ImportFile 提取上传文件文本、归档原文件并解析
func (s *Service) ImportFile(ctx context.Context, req *ImportFileRequest) (*DatasetWithQueries, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.cfg.MaxUploadBytes)
	}

	text, err := ExtractText(ctx, req.FileName, req.ContentType, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || name == "undefined" {
		name = req.FileName
	}
	if name == "" {
		name = "uploaded"
	}

	out, err := s.ParseTranscript(ctx, &ParseRequest{
		Name:           name,
		Content:        text,
		SystemBehavior: req.SystemBehavior,
		SourceType:     "file",
	})
	if err != nil {
		return nil, err
	}

	if s.files != nil {
		record, err := s.files.Archive(ctx, req.FileName, req.ContentType, req.Data)
		if err != nil {
			s.logger.Warn("failed to archive upload", zap.String("file", req.FileName), zap.Error(err))
			return out, nil
		}
		if err := s.repo.Datasets.Update(ctx, out.ID, map[string]any{"source_file_id": record.ID}); err != nil {
			return nil, fmt.Errorf("failed to link source file: %w", err)
		}
		out.SourceFileID = &record.ID
	}
	return out, nil
}

// extractItems 按块调用 LLM 并合并结果
func (s *Service) extractItems(ctx context.Context, content string) ([]ParsedItem, error) {
	prompt, err := s.repo.Prompts.GetByKey(ctx, ParsePromptKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPromptMissing, ParsePromptKey)
		}
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}

	chunks, err := s.split(ctx, content)
	if err != nil {
		return nil, err
	}

	var items []ParsedItem
	for i, chunk := range chunks {
		start := time.Now()
		resp, err := s.chatModel.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompt.Body),
			schema.UserMessage(chunk),
		})
		metrics.LLMDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("failed to parse chunk %d: %w", i+1, err)
		}
		parsed, err := ParseItems(resp.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrInvalidInput, i+1, err)
		}
		items = append(items, parsed...)
	}
	return items, nil
}

// split 超过块大小的转录用递归分割器切分
func (s *Service) split(ctx context.Context, content string) ([]string, error) {
	if s.cfg.ChunkSize <= 0 || len(content) <= s.cfg.ChunkSize {
		return []string{content}, nil
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   s.cfg.ChunkSize,
		OverlapSize: 0,
		Separators:  []string{"\n\n", "\n", ". ", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}
	docs, err := splitter.Transform(ctx, []*schema.Document{{Content: content}})
	if err != nil {
		return nil, fmt.Errorf("failed to split transcript: %w", err)
	}

	chunks := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			chunks = append(chunks, d.Content)
		}
	}
	return chunks, nil
}

// ParseItems 解析 LLM 回复中的查询列表
// 接受 query/question 与 expectations/expected/expectation 键，缺少查询的元素被忽略
func ParseItems(content string) ([]ParsedItem, error) {
	data, err := llmjson.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("LLM did not return valid JSON: %w", err)
	}
	objs, ok := llmjson.Objects(data)
	if !ok {
		return nil, fmt.Errorf("LLM returned %T, want a JSON array", data)
	}

	items := make([]ParsedItem, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		q := firstText(obj, "query", "question")
		if strings.TrimSpace(q) == "" {
			continue
		}
		items = append(items, ParsedItem{
			Query:        q,
			Expectations: firstText(obj, "expectations", "expected", "expectation"),
		})
	}
	return items, nil
}

func firstText(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return v
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
