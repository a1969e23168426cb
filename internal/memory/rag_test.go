package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/minder/internal/domain"
)

func TestBuildWithRetrieval_EmptySnippets_IdenticalToBuild(t *testing.T) {
	history := makeHistory("hello", "hi", "what's up")
	opts := Options{MaxTokens: 200, MaxMessages: 10, SystemPrompt: "sys"}

	plain := Build(history, opts)
	merged := BuildWithRetrieval(history, nil, opts)

	assert.Equal(t, plain, merged)
}

func TestBuildWithRetrieval_PrependsKnowledgeMessage(t *testing.T) {
	history := makeHistory("tell me about my tasks")
	snippets := []string{"task one is due friday", "task two is completed"}

	ctx := BuildWithRetrieval(history, snippets, Options{MaxTokens: 4000, MaxMessages: 50})

	require.NotEmpty(t, ctx.Messages)
	first := ctx.Messages[0]
	assert.Equal(t, domain.RoleSystem, first.Role)
	assert.True(t, IsRetrievalMessage(first))
	assert.Equal(t,
		"Relevant context from knowledge base:\ntask one is due friday\n\ntask two is completed",
		first.Content)

	// Conversation turns follow in order.
	assert.Equal(t, "tell me about my tasks", ctx.Messages[1].Content)
}

func TestBuildWithRetrieval_HistoryGetsSeventyPercent(t *testing.T) {
	// 40-char messages = 10 tokens each. With MaxTokens=100 the history
	// sub-build gets a 70-token budget, fitting seven messages.
	chunk := strings.Repeat("x", 40)
	history := makeHistory(chunk, chunk, chunk, chunk, chunk, chunk, chunk, chunk, chunk, chunk)

	ctx := BuildWithRetrieval(history, []string{"snippet"}, Options{MaxTokens: 100, MaxMessages: 50})

	// One retrieval message plus seven history messages.
	require.Len(t, ctx.Messages, 8)
	assert.True(t, IsRetrievalMessage(ctx.Messages[0]))
	assert.True(t, ctx.Truncated)
}

func TestBuildWithRetrieval_SnippetCostUncapped(t *testing.T) {
	// A snippet far beyond the nominal budget still rides along: the split
	// is a soft limit, not a hard invariant.
	huge := strings.Repeat("k", 4000)
	history := makeHistory("short question")

	ctx := BuildWithRetrieval(history, []string{huge}, Options{MaxTokens: 100, MaxMessages: 50})

	require.Len(t, ctx.Messages, 2)
	assert.True(t, IsRetrievalMessage(ctx.Messages[0]))
	assert.Greater(t, ctx.TotalTokens, 100)
}

func TestIsRetrievalMessage_OrganicTurn(t *testing.T) {
	assert.False(t, IsRetrievalMessage(domain.Message{Role: domain.RoleSystem, Content: "plain"}))
}
