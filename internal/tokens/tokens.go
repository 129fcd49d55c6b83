// Package tokens estimates prompt and completion sizes for the status
// line. Counts come from a tiktoken encoding once one is loaded and from
// a four-characters-per-token rule before that.
package tokens

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	harmony "github.com/buchuleaf/harmony-cli"
)

// DefaultEncoding is the encoding gpt-oss shares with the o-series models.
const DefaultEncoding = "o200k_base"

type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

var getEncoding = func(name string) (encoder, error) {
	return tiktoken.GetEncoding(name)
}

// Estimator counts tokens. It is safe for concurrent use.
type Estimator struct {
	mu     sync.RWMutex
	enc    encoder
	logger *zap.Logger
}

// New returns an estimator that uses the character rule until Load
// succeeds.
func New(logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{logger: logger}
}

// Load fetches the named encoding. tiktoken may download the ranks on
// first use, so callers usually run this in the background.
func (e *Estimator) Load(name string) error {
	enc, err := getEncoding(name)
	if err != nil {
		e.logger.Warn("token encoding unavailable, using approximation", zap.String("encoding", name), zap.Error(err))
		return err
	}
	e.mu.Lock()
	e.enc = enc
	e.mu.Unlock()
	e.logger.Debug("token encoding loaded", zap.String("encoding", name))
	return nil
}

// Exact reports whether counts come from a real encoding.
func (e *Estimator) Exact() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enc != nil
}

// Count returns the token estimate for text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.mu.RLock()
	enc := e.enc
	e.mu.RUnlock()
	if enc == nil {
		return Approx(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountRequest estimates the prompt side of a request by counting its
// JSON body.
func (e *Estimator) CountRequest(model, system string, history []harmony.Message, tools []harmony.ToolSpec) int {
	msgs := make([]any, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": system})
	}
	for _, m := range history {
		msgs = append(msgs, m)
	}
	body, err := json.Marshal(map[string]any{"model": model, "messages": msgs, "tools": tools})
	if err != nil {
		return 0
	}
	return e.Count(string(body))
}

// Approx is ceil(len(text)/4) over bytes.
func Approx(text string) int {
	return (len(text) + 3) / 4
}
