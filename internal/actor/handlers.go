package actor

import (
	"context"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/llm"
	"github.com/soyeahso/minder/internal/memory"
	"github.com/soyeahso/minder/internal/protocol"
	"github.com/soyeahso/minder/internal/retrieval"
	"github.com/soyeahso/minder/internal/store"
	"github.com/soyeahso/minder/internal/workflow"
)

// apology is the degraded reply when the completion backend is down or slow.
// The user's message is already in the log by then, so nothing is lost.
const apology = "Sorry, I'm having trouble responding right now. Please try again in a moment."

// Rate limit action buckets. Chat is limited separately from task
// operations because a completion call is far more expensive.
const (
	limitChat = "chat"
	limitTask = "task"
)

func (a *Actor) handleFrame(ctx context.Context, frame protocol.Inbound, h Handle) {
	a.state.LastActivity = a.now().UTC()

	switch frame.Type {
	case protocol.TypeChat:
		a.handleChat(ctx, frame, h)
	case protocol.TypeCreateTask:
		a.handleCreateTask(frame, h)
	case protocol.TypeListTasks:
		a.handleListTasks(h)
	case protocol.TypeCompleteTask:
		a.handleCompleteTask(frame, h)
	case protocol.TypeUpdateTask:
		a.handleUpdateTask(frame, h)
	case protocol.TypeDeleteTask:
		a.handleDeleteTask(frame, h)
	case protocol.TypePing:
		a.send(h, protocol.Pong())
	default:
		a.send(h, protocol.ErrorFrame(domain.NewError(domain.CodeUnknownType, "unknown message type")))
	}
}

// handleChat runs one conversational turn: persist the user's message, pull
// relevant knowledge, assemble a bounded context, and complete. Retrieval is
// best-effort and the completion degrades to an apology, so the only errors
// a client ever sees here are rate limits and storage failures.
func (a *Actor) handleChat(ctx context.Context, frame protocol.Inbound, h Handle) {
	if !a.deps.Limiter.CheckLimit(a.userID, limitChat, a.deps.Limits.ChatCalls, a.deps.Limits.Window) {
		a.send(h, protocol.ErrorFrame(domain.NewError(domain.CodeRateLimited, "too many chat messages, slow down")))
		return
	}

	userMsg, err := a.deps.Messages.Append(a.userID, domain.Message{
		Role:    domain.RoleUser,
		Content: frame.Content,
	})
	if err != nil {
		a.log.Error().Err(err).Msg("appending user message failed")
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.state.Remember(userMsg)

	snippets := a.retrieve(ctx, frame.Content)
	mctx := memory.BuildWithRetrieval(a.state.History, snippets, memory.Options{
		MaxTokens:    a.deps.MaxTokens,
		MaxMessages:  a.deps.MaxMessages,
		SystemPrompt: a.deps.Prompt,
	})

	reply := a.complete(ctx, mctx)

	assistantMsg, err := a.deps.Messages.Append(a.userID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: reply,
	})
	if err != nil {
		a.log.Error().Err(err).Msg("appending assistant message failed")
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.state.Remember(assistantMsg)
	a.deps.Limiter.RecordCall(a.userID, limitChat)
	a.persist()

	a.ingestKnowledge(frame.Content)
	a.send(h, protocol.ChatResponse(reply))
}

// retrieve searches the knowledge index for the query. Failures degrade to
// no snippets.
func (a *Actor) retrieve(ctx context.Context, query string) []string {
	if a.deps.Search == nil {
		return nil
	}
	topK := a.deps.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	snippets, err := a.deps.Search.Search(ctx, a.userID, query, topK)
	if err != nil {
		a.log.Warn().Err(err).Msg("knowledge retrieval failed, continuing without")
		return nil
	}
	return snippets
}

// complete calls the model and degrades to the canned apology on any
// failure. The client always gets a chat_response.
func (a *Actor) complete(ctx context.Context, mctx memory.Context) string {
	resp, err := a.deps.Model.Complete(ctx, llm.CompletionRequest{
		Messages:    memory.FormatForModel(mctx),
		MaxTokens:   a.deps.ReplyTokens,
		Temperature: a.deps.Temperature,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("provider", a.deps.Model.Name()).Msg("completion failed, sending apology")
		return apology
	}
	return resp.Content
}

// ingestKnowledge indexes a user turn for later retrieval. Best-effort.
func (a *Actor) ingestKnowledge(content string) {
	if a.deps.Knowledge == nil || content == "" {
		return
	}
	_, err := a.deps.Knowledge.Store(store.KnowledgeChunk{
		UserID:  a.userID,
		Content: content,
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("indexing chat turn failed")
	}
}

func (a *Actor) checkTaskLimit(h Handle) bool {
	if !a.deps.Limiter.CheckLimit(a.userID, limitTask, a.deps.Limits.TaskCalls, a.deps.Limits.Window) {
		a.send(h, protocol.ErrorFrame(domain.NewError(domain.CodeRateLimited, "too many task operations, slow down")))
		return false
	}
	return true
}

func (a *Actor) handleCreateTask(frame protocol.Inbound, h Handle) {
	if !a.checkTaskLimit(h) {
		return
	}

	task := domain.Task{
		UserID:  a.userID,
		Title:   frame.Title,
		DueDate: frame.DueDate,
	}
	if frame.Description != nil {
		task.Description = *frame.Description
	}
	if frame.Priority != nil {
		task.Priority = *frame.Priority
	}

	created, err := a.deps.Tasks.Create(task)
	if err != nil {
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.deps.Limiter.RecordCall(a.userID, limitTask)

	// A failed reminder enqueue never fails the create; the task exists
	// either way.
	if a.deps.Engine != nil && workflow.ShouldSchedule(created, a.now()) {
		if _, err := a.deps.Engine.Enqueue(workflow.ReminderRun(created)); err != nil {
			a.log.Error().Err(err).Str("taskId", created.ID).Msg("enqueueing reminder failed")
		}
	}

	a.persist()
	a.send(h, protocol.TaskCreated(created))
}

func (a *Actor) handleListTasks(h Handle) {
	tasks, err := a.deps.Tasks.List(a.userID)
	if err != nil {
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.send(h, protocol.TasksList(tasks))
}

func (a *Actor) handleCompleteTask(frame protocol.Inbound, h Handle) {
	if !a.checkTaskLimit(h) {
		return
	}
	task, err := a.deps.Tasks.Complete(a.userID, frame.TaskID)
	if err != nil {
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.deps.Limiter.RecordCall(a.userID, limitTask)
	a.persist()
	a.send(h, protocol.TaskCompleted(task))
}

func (a *Actor) handleUpdateTask(frame protocol.Inbound, h Handle) {
	if !a.checkTaskLimit(h) {
		return
	}
	upd := domain.TaskUpdate{
		Description: frame.Description,
		DueDate:     frame.DueDate,
		Priority:    frame.Priority,
	}
	if frame.Title != "" {
		upd.Title = &frame.Title
	}

	task, err := a.deps.Tasks.Update(a.userID, frame.TaskID, upd)
	if err != nil {
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.deps.Limiter.RecordCall(a.userID, limitTask)
	a.persist()
	a.send(h, protocol.TaskUpdated(task))
}

func (a *Actor) handleDeleteTask(frame protocol.Inbound, h Handle) {
	if !a.checkTaskLimit(h) {
		return
	}
	if err := a.deps.Tasks.Delete(a.userID, frame.TaskID); err != nil {
		a.send(h, protocol.ErrorFrame(err))
		return
	}
	a.deps.Limiter.RecordCall(a.userID, limitTask)
	a.persist()
	a.send(h, protocol.TaskDeleted(frame.TaskID))
}
