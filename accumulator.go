package harmony

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamDelta is one decoded fragment from a provider stream.
type StreamDelta struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCallFragment
	FinishReason StopReason
	Usage        *Usage
}

// ToolCallFragment is a partial tool call. ID and Name usually arrive once,
// on the first fragment for an Index; Arguments are concatenated in
// arrival order.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// PendingToolCall is the in-progress state of one tool-call slot.
type PendingToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ToolCallAccumulator rebuilds tool calls from fragments keyed by slot
// index. It is safe for concurrent use so a renderer may Snapshot while
// the stream consumer ingests.
type ToolCallAccumulator struct {
	mu        sync.Mutex
	calls     map[int]*PendingToolCall
	finalized bool

	logger *zap.Logger
	newID  func() string
}

// NewToolCallAccumulator returns an empty accumulator. A nil logger is
// replaced with a no-op logger.
func NewToolCallAccumulator(logger *zap.Logger) *ToolCallAccumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolCallAccumulator{
		calls:  make(map[int]*PendingToolCall),
		logger: logger,
		newID:  func() string { return "call_" + uuid.NewString() },
	}
}

// Ingest applies every tool-call fragment of d and returns the changes that
// were accepted. Fragments arriving after Finalize are ignored.
func (a *ToolCallAccumulator) Ingest(d StreamDelta) []ToolCallDelta {
	if len(d.ToolCalls) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return nil
	}

	var applied []ToolCallDelta
	for _, f := range d.ToolCalls {
		if cd, ok := a.update(f); ok {
			applied = append(applied, cd)
		}
	}
	return applied
}

// update is the only place pending calls are created or mutated.
func (a *ToolCallAccumulator) update(f ToolCallFragment) (ToolCallDelta, bool) {
	call, seen := a.calls[f.Index]
	if !seen {
		if f.ID == "" && f.Name == "" {
			a.logger.Debug("dropping fragment for unseen tool call slot", zap.Int("index", f.Index))
			return ToolCallDelta{}, false
		}
		call = &PendingToolCall{Index: f.Index}
		a.calls[f.Index] = call
	}
	if call.ID == "" && f.ID != "" {
		call.ID = f.ID
	}
	if call.Name == "" && f.Name != "" {
		call.Name = f.Name
	}
	call.Arguments += f.Arguments

	return ToolCallDelta{
		Index:     f.Index,
		CallID:    call.ID,
		Name:      call.Name,
		ArgsDelta: f.Arguments,
		First:     !seen,
	}, true
}

// Snapshot returns copies of the pending calls in ascending index order.
func (a *ToolCallAccumulator) Snapshot() []PendingToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedLocked()
}

// Finalize closes the accumulator and promotes pending calls to ToolCalls.
// Calls that never received a name are dropped with a warning; calls that
// never received an id get a generated one. Arguments are not parsed.
func (a *ToolCallAccumulator) Finalize() []ToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true

	pending := a.sortedLocked()
	calls := make([]ToolCall, 0, len(pending))
	for _, p := range pending {
		if p.Name == "" {
			a.logger.Warn("dropping tool call without a name",
				zap.Int("index", p.Index),
				zap.String("id", p.ID),
				zap.Int("args_len", len(p.Arguments)))
			continue
		}
		id := p.ID
		if id == "" {
			id = a.newID()
		}
		calls = append(calls, ToolCall{Index: p.Index, CallID: id, Name: p.Name, Arguments: p.Arguments})
	}
	return calls
}

func (a *ToolCallAccumulator) sortedLocked() []PendingToolCall {
	idxs := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	out := make([]PendingToolCall, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, *a.calls[idx])
	}
	return out
}
