package usage

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// EncodingName 计数使用的编码
const EncodingName = "cl100k_base"

// Tokenizer 文本 token 计数
type Tokenizer interface {
	Count(text string) int
	Name() string
}

// CharTokenizer 按四字符一 token 近似
type CharTokenizer struct{}

// Count 实现 Tokenizer
func (CharTokenizer) Count(text string) int {
	return (len([]rune(text)) + 3) / 4
}

// Name 实现 Tokenizer
func (CharTokenizer) Name() string {
	return "chars/4"
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenCounter) Name() string {
	return EncodingName
}

var (
	defaultOnce      sync.Once
	defaultTokenizer Tokenizer
)

// DefaultTokenizer 返回 cl100k_base 编码，加载失败时退回字符近似
func DefaultTokenizer(logger *zap.Logger) Tokenizer {
	defaultOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(EncodingName)
		if err != nil {
			if logger != nil {
				logger.Warn("tiktoken unavailable, using character estimate", zap.Error(err))
			}
			defaultTokenizer = CharTokenizer{}
			return
		}
		defaultTokenizer = &tiktokenCounter{enc: enc}
	})
	return defaultTokenizer
}
