// Package memory assembles bounded conversation contexts for completion
// calls. A context is built fresh per request: it depends on the current
// history length and is never cached.
package memory

import (
	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/llm"
	"github.com/soyeahso/minder/internal/tokens"
)

// Default budget limits applied when options are zero-valued.
const (
	DefaultMaxTokens   = 4000
	DefaultMaxMessages = 50
)

// Options bound a context build.
type Options struct {
	MaxTokens    int
	MaxMessages  int
	SystemPrompt string
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	return o
}

// Context is a token-bounded, ordered view over a conversation history.
type Context struct {
	Messages     []domain.Message
	SystemPrompt string
	TotalTokens  int
	Truncated    bool
}

// Build assembles a context from history within the configured budgets.
//
// The message-count cap is applied first: only the most recent MaxMessages
// survive to token accounting. The kept messages are then walked newest to
// oldest, accumulating estimated cost, and the walk stops before the running
// total would exceed MaxTokens (the system prompt's cost is charged up
// front). Accepted messages come out oldest-first. If even the newest
// message alone overflows the remaining budget the context is legitimately
// empty, and Truncated reports whether anything was discarded for either
// reason.
func Build(history []domain.Message, opts Options) Context {
	opts = opts.withDefaults()

	kept := history
	countTruncated := false
	if len(kept) > opts.MaxMessages {
		kept = kept[len(kept)-opts.MaxMessages:]
		countTruncated = true
	}

	total := tokens.Estimate(opts.SystemPrompt)
	budget := opts.MaxTokens

	accepted := 0
	for i := len(kept) - 1; i >= 0; i-- {
		cost := tokens.Estimate(kept[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		accepted++
	}

	msgs := make([]domain.Message, accepted)
	copy(msgs, kept[len(kept)-accepted:])

	return Context{
		Messages:     msgs,
		SystemPrompt: opts.SystemPrompt,
		TotalTokens:  total,
		Truncated:    countTruncated || accepted < len(kept),
	}
}

// FormatForModel projects a context into the wire shape the completion
// backend accepts: the system prompt first (when present), then the kept
// messages in chronological order. Pure, no side effects.
func FormatForModel(ctx Context) []llm.Message {
	out := make([]llm.Message, 0, len(ctx.Messages)+1)
	if ctx.SystemPrompt != "" {
		out = append(out, llm.Message{Role: domain.RoleSystem, Content: ctx.SystemPrompt})
	}
	for _, m := range ctx.Messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
