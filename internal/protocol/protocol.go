// Package protocol defines the JSON messages exchanged over a client
// session. Inbound messages carry a type discriminator; outbound messages
// are built by constructors so every frame carries its type and timestamp.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/minder/internal/domain"
)

// Inbound message types.
const (
	TypeChat         = "chat"
	TypeCreateTask   = "create_task"
	TypeListTasks    = "list_tasks"
	TypeCompleteTask = "complete_task"
	TypeUpdateTask   = "update_task"
	TypeDeleteTask   = "delete_task"
	TypePing         = "ping"
)

// Outbound message types.
const (
	TypeConnected     = "connected"
	TypeChatResponse  = "chat_response"
	TypeTaskCreated   = "task_created"
	TypeTaskUpdated   = "task_updated"
	TypeTaskCompleted = "task_completed"
	TypeTaskDeleted   = "task_deleted"
	TypeTasksList     = "tasks_list"
	TypePong          = "pong"
	TypeError         = "error"
)

// Inbound is a client request frame. Fields beyond Type are populated
// depending on the type; Parse enforces which ones are required.
type Inbound struct {
	Type        string     `json:"type"`
	Content     string     `json:"content,omitempty"`
	TaskID      string     `json:"taskId,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
}

// Parse decodes and validates a client frame. Validation failures come back
// as domain errors so the session layer can map them straight to error
// frames.
func Parse(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, domain.NewError(domain.CodeValidation, fmt.Sprintf("invalid message: %v", err))
	}

	switch in.Type {
	case TypeChat:
		if in.Content == "" {
			return Inbound{}, domain.NewError(domain.CodeValidation, "chat message requires content")
		}
	case TypeCreateTask:
		if in.Title == "" {
			return Inbound{}, domain.NewError(domain.CodeValidation, "create_task requires a title")
		}
		if in.Priority != nil && !domain.ValidPriority(*in.Priority) {
			return Inbound{}, domain.NewError(domain.CodeValidation, fmt.Sprintf("invalid priority %q", *in.Priority))
		}
	case TypeUpdateTask:
		if in.TaskID == "" {
			return Inbound{}, domain.NewError(domain.CodeValidation, "update_task requires taskId")
		}
		if in.Priority != nil && !domain.ValidPriority(*in.Priority) {
			return Inbound{}, domain.NewError(domain.CodeValidation, fmt.Sprintf("invalid priority %q", *in.Priority))
		}
	case TypeCompleteTask, TypeDeleteTask:
		if in.TaskID == "" {
			return Inbound{}, domain.NewError(domain.CodeValidation, fmt.Sprintf("%s requires taskId", in.Type))
		}
	case TypeListTasks, TypePing:
	case "":
		return Inbound{}, domain.NewError(domain.CodeUnknownType, "message type is required")
	default:
		return Inbound{}, domain.NewError(domain.CodeUnknownType, fmt.Sprintf("unknown message type %q", in.Type))
	}
	return in, nil
}

// Envelope carries the fields every outbound frame shares.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func envelope(typ string) Envelope {
	return Envelope{Type: typ, Timestamp: time.Now().UTC()}
}

// ConnectedMsg greets a freshly attached session.
type ConnectedMsg struct {
	Envelope
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// ChatResponseMsg carries the assistant's reply to a chat turn.
type ChatResponseMsg struct {
	Envelope
	Content string `json:"content"`
}

// TaskMsg carries a task snapshot for created, updated, and completed frames.
type TaskMsg struct {
	Envelope
	Task domain.Task `json:"task"`
}

// TaskDeletedMsg acknowledges a deletion by id.
type TaskDeletedMsg struct {
	Envelope
	TaskID string `json:"taskId"`
}

// TasksListMsg carries the user's full task list.
type TasksListMsg struct {
	Envelope
	Tasks []domain.Task `json:"tasks"`
	Count int           `json:"count"`
}

// PongMsg answers a ping.
type PongMsg struct {
	Envelope
}

// ErrorMsg reports a failed request with a stable error code.
type ErrorMsg struct {
	Envelope
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Connected builds the greeting frame sent after a session attaches.
func Connected(userID string) ConnectedMsg {
	return ConnectedMsg{
		Envelope: envelope(TypeConnected),
		UserID:   userID,
		Message:  "Connected to assistant",
	}
}

// ChatResponse builds an assistant reply frame.
func ChatResponse(content string) ChatResponseMsg {
	return ChatResponseMsg{Envelope: envelope(TypeChatResponse), Content: content}
}

// TaskCreated builds the acknowledgement for a created task.
func TaskCreated(task domain.Task) TaskMsg {
	return TaskMsg{Envelope: envelope(TypeTaskCreated), Task: task}
}

// TaskUpdated builds the acknowledgement for an updated task.
func TaskUpdated(task domain.Task) TaskMsg {
	return TaskMsg{Envelope: envelope(TypeTaskUpdated), Task: task}
}

// TaskCompleted builds the acknowledgement for a completed task.
func TaskCompleted(task domain.Task) TaskMsg {
	return TaskMsg{Envelope: envelope(TypeTaskCompleted), Task: task}
}

// TaskDeleted builds the acknowledgement for a deleted task.
func TaskDeleted(taskID string) TaskDeletedMsg {
	return TaskDeletedMsg{Envelope: envelope(TypeTaskDeleted), TaskID: taskID}
}

// TasksList builds a full task listing frame. Tasks is never null on the
// wire, an empty list encodes as [].
func TasksList(tasks []domain.Task) TasksListMsg {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return TasksListMsg{Envelope: envelope(TypeTasksList), Tasks: tasks, Count: len(tasks)}
}

// Pong builds a ping response.
func Pong() PongMsg {
	return PongMsg{Envelope: envelope(TypePong)}
}

// ErrorFrame maps an error to its outbound frame. Domain errors keep their
// code; anything else degrades to a backend error.
func ErrorFrame(err error) ErrorMsg {
	msg := ErrorMsg{
		Envelope: envelope(TypeError),
		Error:    domain.CodeOf(err),
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		msg.Details = derr.Message
	} else if err != nil {
		msg.Details = err.Error()
	}
	return msg
}
