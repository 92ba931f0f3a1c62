package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecMu    sync.RWMutex
	codecCache = map[tokenizer.Encoding]tokenizer.Codec{}
)

// CountTextTokens estimates how many tokens text occupies for model.
// Used for prompt-size accounting, not billing, so the per-message
// framing overhead is ignored.
func CountTextTokens(model, text string) (int, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = codecForEncoding(fallbackEncoding(model))
		if err != nil {
			return 0, fmt.Errorf("failed to get tokenizer: %w", err)
		}
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

func codecForEncoding(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	codecMu.RLock()
	if cached, ok := codecCache[encoding]; ok {
		codecMu.RUnlock()
		return cached, nil
	}
	codecMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	codecMu.Lock()
	codecCache[encoding] = codec
	codecMu.Unlock()
	return codec, nil
}

func fallbackEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
