package memory

import (
	"strings"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/tokens"
)

// RetrievalTag marks the synthesized knowledge-base message so downstream
// code can tell it apart from organic conversation turns.
const RetrievalTag = "knowledge_base_context"

// retrievalHeader prefixes the joined snippets in the synthesized message.
const retrievalHeader = "Relevant context from knowledge base:\n"

// historyBudgetShare is the fraction of the token budget reserved for
// conversation history when retrieved snippets are present. The retrieval
// message itself is not separately capped; callers keep snippets short
// upstream.
const historyBudgetShare = 0.7

// BuildWithRetrieval folds retrieved knowledge snippets into a context
// build. With no snippets it is exactly Build. Otherwise the history is
// built against 70% of the token budget and a single system message
// carrying the snippets is prepended as the first element.
func BuildWithRetrieval(history []domain.Message, snippets []string, opts Options) Context {
	if len(snippets) == 0 {
		return Build(history, opts)
	}

	opts = opts.withDefaults()

	sub := opts
	sub.MaxTokens = int(float64(opts.MaxTokens) * historyBudgetShare)
	ctx := Build(history, sub)

	content := retrievalHeader + strings.Join(snippets, "\n\n")
	retrieved := domain.Message{
		Role:     domain.RoleSystem,
		Content:  content,
		Metadata: map[string]string{"tag": RetrievalTag},
	}

	ctx.Messages = append([]domain.Message{retrieved}, ctx.Messages...)
	ctx.TotalTokens += tokens.Estimate(content)
	return ctx
}

// IsRetrievalMessage reports whether msg is the synthesized knowledge-base
// context message.
func IsRetrievalMessage(msg domain.Message) bool {
	return msg.Metadata["tag"] == RetrievalTag
}
