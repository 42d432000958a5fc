package llm

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecMu    sync.Mutex
	codecCache = map[string]tokenizer.Codec{}
)

func codecFor(model string) (tokenizer.Codec, error) {
	model = strings.ToLower(strings.TrimSpace(model))

	codecMu.Lock()
	defer codecMu.Unlock()
	if c, ok := codecCache[model]; ok {
		return c, nil
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		enc := tokenizer.O200kBase
		if strings.HasPrefix(model, "gpt-3.5") || strings.HasPrefix(model, "gpt-4-") || model == "gpt-4" {
			enc = tokenizer.Cl100kBase
		}
		codec, err = tokenizer.Get(enc)
		if err != nil {
			return nil, err
		}
	}
	codecCache[model] = codec
	return codec, nil
}

// CountTokens estimates how many tokens text costs for model. A codec failure
// falls back to a four-characters-per-token estimate.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	codec, err := codecFor(model)
	if err == nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}
