// Package report 汇总运行的校验结果
package report

import (
	"math"
	"sort"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/replay"
)

// CriterionSummary 单个标准的通过情况
type CriterionSummary struct {
	CriterionKey string   `json:"criterion_key"`
	PassedCount  int      `json:"passed_count"`
	TotalCount   int      `json:"total_count"`
	PassRatePct  float64  `json:"pass_rate_pct"`
	AvgScore     *float64 `json:"avg_score"`
}

// RunReport 运行汇总报告
type RunReport struct {
	RunID          uint               `json:"run_id"`
	TotalQueries   int                `json:"total_queries"`
	ResponsesCount int                `json:"responses_count"`
	SuccessCount   int                `json:"success_count"`
	SuccessRatePct float64            `json:"success_rate_pct"`
	PerCriterion   []CriterionSummary `json:"per_criterion"`
}

// ValidationItem 深度分析中的单条判定
type ValidationItem struct {
	CriterionKey    string   `json:"criterion_key"`
	CriterionName   string   `json:"criterion_name"`
	Passed          bool     `json:"passed"`
	Score           *float64 `json:"score"`
	Reason          *string  `json:"reason"`
	OverridePassed  *bool    `json:"override_passed"`
	ReviewerComment *string  `json:"reviewer_comment"`
}

// AnalysisRow 深度分析中的一条回放
type AnalysisRow struct {
	MessageResponseID uint             `json:"message_response_id"`
	QueryText         string           `json:"query_text"`
	Expectations      *string          `json:"expectations"`
	ExpectationsClear *bool            `json:"expectations_clear"`
	ResponseText      *string          `json:"response_text"`
	Response          any              `json:"response"`
	Error             *string          `json:"error"`
	Validations       []ValidationItem `json:"validations"`
	AllPassed         bool             `json:"all_passed"`
}

// DeepAnalysis 逐条回放的判定明细
type DeepAnalysis struct {
	RunID          uint              `json:"run_id"`
	RunName        string            `json:"run_name"`
	TotalQueries   int               `json:"total_queries"`
	ResponsesCount int               `json:"responses_count"`
	SuccessCount   int               `json:"success_count"`
	SuccessRatePct float64           `json:"success_rate_pct"`
	CriterionKeys  []string          `json:"criterion_keys"`
	CriterionNames map[string]string `json:"criterion_names"`
	Rows           []AnalysisRow     `json:"rows"`
}

// TimelineChunk 角色片段
type TimelineChunk struct {
	Order  int    `json:"order"`
	Avatar string `json:"avatar"`
}

// TimelineItem 单条查询的角色时间线
type TimelineItem struct {
	QueryIndex        int             `json:"query_index"`
	QueryText         string          `json:"query_text"`
	MessageResponseID uint            `json:"message_response_id"`
	ResponseText      *string         `json:"response_text"`
	Chunks            []TimelineChunk `json:"chunks"`
}

// CharacterTimeline 运行的角色时间线
type CharacterTimeline struct {
	RunID   uint           `json:"run_id"`
	RunName string         `json:"run_name"`
	Items   []TimelineItem `json:"items"`
}

// BuildRunReport 按回放聚合判定；全部标准通过（计入人工覆盖）的回放计为成功
func BuildRunReport(run *model.Run, responsesCount int, validations []*model.Validation) *RunReport {
	r := &RunReport{
		RunID:          run.ID,
		TotalQueries:   run.TotalQueries,
		ResponsesCount: responsesCount,
		PerCriterion:   []CriterionSummary{},
	}
	if responsesCount == 0 {
		return r
	}

	allPassed := make(map[uint]bool)
	type agg struct {
		passed, total, scored int
		scoreSum              float64
	}
	byKey := make(map[string]*agg)
	for _, v := range validations {
		passed := v.EffectivePassed()
		if prev, ok := allPassed[v.MessageResponseID]; ok {
			allPassed[v.MessageResponseID] = prev && passed
		} else {
			allPassed[v.MessageResponseID] = passed
		}

		a, ok := byKey[v.CriterionKey]
		if !ok {
			a = &agg{}
			byKey[v.CriterionKey] = a
		}
		a.total++
		if passed {
			a.passed++
		}
		if v.Score != nil {
			a.scored++
			a.scoreSum += *v.Score
		}
	}

	for _, ok := range allPassed {
		if ok {
			r.SuccessCount++
		}
	}
	r.SuccessRatePct = pct(r.SuccessCount, responsesCount)

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := byKey[k]
		s := CriterionSummary{
			CriterionKey: k,
			PassedCount:  a.passed,
			TotalCount:   a.total,
			PassRatePct:  pct(a.passed, a.total),
		}
		if a.scored > 0 {
			avg := round2(a.scoreSum / float64(a.scored))
			s.AvgScore = &avg
		}
		r.PerCriterion = append(r.PerCriterion, s)
	}
	return r
}

// BuildDeepAnalysis 组装逐条回放明细
func BuildDeepAnalysis(run *model.Run, pairs []repository.ResponsePair, validations []*model.Validation, names map[string]string) *DeepAnalysis {
	d := &DeepAnalysis{
		RunID:          run.ID,
		RunName:        run.Name,
		TotalQueries:   run.TotalQueries,
		CriterionKeys:  []string{},
		CriterionNames: map[string]string{},
		Rows:           []AnalysisRow{},
	}
	if len(pairs) == 0 {
		return d
	}

	byResponse := make(map[uint][]*model.Validation)
	seen := make(map[string]bool)
	for _, v := range validations {
		byResponse[v.MessageResponseID] = append(byResponse[v.MessageResponseID], v)
		if !seen[v.CriterionKey] {
			seen[v.CriterionKey] = true
			d.CriterionKeys = append(d.CriterionKeys, v.CriterionKey)
		}
	}
	sort.Strings(d.CriterionKeys)
	for _, k := range d.CriterionKeys {
		if name, ok := names[k]; ok {
			d.CriterionNames[k] = name
		}
	}

	for _, p := range pairs {
		vals := byResponse[p.Response.ID]
		sort.SliceStable(vals, func(i, j int) bool { return vals[i].CriterionKey < vals[j].CriterionKey })

		items := make([]ValidationItem, 0, len(vals))
		all := len(vals) > 0
		for _, v := range vals {
			name := v.CriterionKey
			if n, ok := names[v.CriterionKey]; ok {
				name = n
			}
			passed := v.EffectivePassed()
			all = all && passed
			items = append(items, ValidationItem{
				CriterionKey:    v.CriterionKey,
				CriterionName:   name,
				Passed:          passed,
				Score:           v.Score,
				Reason:          v.Details.Reason,
				OverridePassed:  v.Details.OverridePassed,
				ReviewerComment: v.Details.ReviewerComment,
			})
		}
		if all {
			d.SuccessCount++
		}

		var payload any
		if p.Response.RawChunks.LastChunk != nil {
			payload = p.Response.RawChunks.LastChunk
		} else if p.Response.ResponseText != nil {
			payload = *p.Response.ResponseText
		}

		d.Rows = append(d.Rows, AnalysisRow{
			MessageResponseID: p.Response.ID,
			QueryText:         p.Query.QueryText,
			Expectations:      p.Query.Expectations,
			ExpectationsClear: p.Query.ExpectationsClear(),
			ResponseText:      p.Response.ResponseText,
			Response:          payload,
			Error:             p.Response.Error,
			Validations:       items,
			AllPassed:         all,
		})
	}
	d.ResponsesCount = len(d.Rows)
	d.SuccessRatePct = pct(d.SuccessCount, d.ResponsesCount)
	return d
}

// BuildCharacterTimeline 组装角色时间线
// 未捕获流式角色片段时，从终止块的角色标记合成一条
func BuildCharacterTimeline(run *model.Run, pairs []repository.ResponsePair) *CharacterTimeline {
	t := &CharacterTimeline{RunID: run.ID, RunName: run.Name, Items: make([]TimelineItem, 0, len(pairs))}
	for i, p := range pairs {
		chunks := make([]TimelineChunk, 0, len(p.Response.RawChunks.StreamChunks))
		for _, c := range p.Response.RawChunks.StreamChunks {
			if c.Avatar != "" {
				chunks = append(chunks, TimelineChunk{Order: c.Order, Avatar: c.Avatar})
			}
		}
		if len(chunks) == 0 && p.Response.RawChunks.LastChunk != nil {
			if avatar := replay.Persona(p.Response.RawChunks.LastChunk); avatar != "" {
				chunks = append(chunks, TimelineChunk{Order: 1, Avatar: avatar})
			}
		}

		var text *string
		if p.Response.ResponseText != nil && *p.Response.ResponseText != "" {
			text = p.Response.ResponseText
		}
		t.Items = append(t.Items, TimelineItem{
			QueryIndex:        i + 1,
			QueryText:         p.Query.QueryText,
			MessageResponseID: p.Response.ID,
			ResponseText:      text,
			Chunks:            chunks,
		})
	}
	return t
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
