// Package testutil 提供测试辅助工具
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// StreamRequest 测试聊天接口收到的请求
type StreamRequest struct {
	Authorization string
	Message       string `json:"message"`
	NewThread     bool   `json:"new_thread"`
	IsAudio       bool   `json:"is_audio"`
}

// StreamServer 模拟流式聊天接口
// Reply 根据请求返回原始事件行，不含 "data: " 前缀的行原样写出
type StreamServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []StreamRequest

	Status int
	Reply  func(req StreamRequest) []string
}

// NewStreamServer 创建模拟流式聊天接口，测试结束时自动关闭
func NewStreamServer(t *testing.T, reply func(req StreamRequest) []string) *StreamServer {
	t.Helper()
	s := &StreamServer{Status: http.StatusOK, Reply: reply}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *StreamServer) handle(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Authorization = r.Header.Get("Authorization")

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status := s.Status
	s.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "upstream unavailable", status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range s.Reply(req) {
		fmt.Fprintf(w, "%s\n\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Requests 返回已收到的请求副本
func (s *StreamServer) Requests() []StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StreamRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Event 构造一行 "data: {...}" 事件
func Event(chunk any, last bool) string {
	b, _ := json.Marshal(map[string]any{"chunk": chunk, "last_message": last})
	return "data: " + string(b)
}
