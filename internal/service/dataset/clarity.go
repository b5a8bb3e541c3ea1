package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/llmjson"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	dbmodel "github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// ClarityPromptKey 期望清晰度模板
const ClarityPromptKey = "evaluate_expectation_clarity"

const clarityReferenceHead = "Use this reference to judge whether expectations are clear and specific enough to validate " +
	"the chat system responses (text, avatar/character, action_type, actions, intents, etc.):\n\n"

// ClarityResult 清晰度评估结果
type ClarityResult struct {
	ClearCount   int `json:"clear_count"`
	UnclearCount int `json:"unclear_count"`
}

type clarityItem struct {
	Query        string `json:"query"`
	Expectations string `json:"expectations"`
}

type clarityVerdict struct {
	Clear      bool
	Suggestion *string
}

// EvaluateExpectations 分批评估期望是否清晰，结果写入查询注解
func (s *Service) EvaluateExpectations(ctx context.Context, datasetID uint) (*ClarityResult, error) {
	if _, err := s.dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	queries, err := s.repo.Queries.ListForExecution(ctx, datasetID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	res := &ClarityResult{}
	if len(queries) == 0 {
		return res, nil
	}

	prompt, err := s.repo.Prompts.GetByKey(ctx, ClarityPromptKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPromptMissing, ClarityPromptKey)
		}
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}
	system := ""
	if ref, err := s.repo.Prompts.GetByKey(ctx, validation.ReferenceKey); err == nil && strings.TrimSpace(ref.Body) != "" {
		system = clarityReferenceHead + strings.TrimSpace(ref.Body)
	}

	batchSize := s.cfg.ClarityBatchSize
	if batchSize < 1 {
		batchSize = 50
	}
	for _, w := range validation.Windows(len(queries), batchSize) {
		batch := queries[w.Start:w.End]
		verdicts := s.judgeClarity(ctx, prompt.Body, system, batch)

		for i, q := range batch {
			meta := dbmodel.JSON{}
			for k, v := range q.Meta {
				meta[k] = v
			}
			meta[dbmodel.MetaExpectationsClear] = verdicts[i].Clear
			meta[dbmodel.MetaExpectationsFeedback] = verdicts[i].Suggestion
			if err := s.repo.Queries.UpdateMeta(ctx, q.ID, meta); err != nil {
				return nil, fmt.Errorf("failed to store clarity for query %d: %w", q.ID, err)
			}
			if verdicts[i].Clear {
				res.ClearCount++
			} else {
				res.UnclearCount++
			}
		}
	}
	return res, nil
}

// judgeClarity 单批调用，失败时整批判为不清晰
func (s *Service) judgeClarity(ctx context.Context, template, system string, batch []*dbmodel.Query) []clarityVerdict {
	items := make([]clarityItem, 0, len(batch))
	for _, q := range batch {
		items = append(items, clarityItem{Query: q.QueryText, Expectations: q.ExpectationText()})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return failedClarity(len(batch), err.Error())
	}
	user := strings.ReplaceAll(template, "{items_json}", strings.TrimSuffix(buf.String(), "\n"))

	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(user))

	start := time.Now()
	resp, err := s.chatModel.Generate(ctx, messages)
	metrics.LLMDuration.WithLabelValues("clarity").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("clarity call failed", zap.Error(err))
		return failedClarity(len(batch), err.Error())
	}
	data, err := llmjson.Decode(resp.Content)
	if err != nil {
		return failedClarity(len(batch), err.Error())
	}
	objs, ok := llmjson.Objects(data)
	if !ok {
		return failedClarity(len(batch), fmt.Sprintf("unexpected reply type %T", data))
	}

	out := make([]clarityVerdict, len(batch))
	for i := range out {
		switch {
		case i >= len(objs):
			out[i] = clarityVerdict{Suggestion: strPtr(validation.MissingReason)}
		case objs[i] == nil:
			out[i] = clarityVerdict{Suggestion: strPtr(validation.InvalidReason)}
		default:
			isClear, _ := objs[i]["clear"].(bool)
			var suggestion *string
			if sv, ok := objs[i]["suggestion"].(string); ok && strings.TrimSpace(sv) != "" {
				suggestion = strPtr(strings.TrimSpace(sv))
			}
			out[i] = clarityVerdict{Clear: isClear, Suggestion: suggestion}
		}
	}
	return out
}

func failedClarity(n int, reason string) []clarityVerdict {
	out := make([]clarityVerdict, n)
	for i := range out {
		out[i] = clarityVerdict{Suggestion: strPtr(reason)}
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
