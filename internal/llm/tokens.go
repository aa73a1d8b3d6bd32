package llm

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// perMessageOverhead approximates the role/separator tokens chat formats add.
const perMessageOverhead = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func getCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("tokenizer unavailable, falling back to length estimate")
			return
		}
		codec = c
	})
	return codec
}

// CountTokens estimates the token count of text with cl100k_base.
// Hosted models use their own tokenizers; this is an estimate for display.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if c := getCodec(); c != nil {
		ids, _, err := c.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

// CountMessageTokens estimates the prompt size of a message list.
func CountMessageTokens(messages []Message) int {
	if len(messages) == 0 {
		return 0
	}
	total := 3 // reply priming
	for _, msg := range messages {
		total += perMessageOverhead + CountTokens(msg.Content)
	}
	return total
}
