package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/minder/internal/domain"
)

func TestParse_Chat(t *testing.T) {
	in, err := Parse([]byte(`{"type":"chat","content":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeChat, in.Type)
	assert.Equal(t, "hello", in.Content)
}

func TestParse_ChatWithoutContent(t *testing.T) {
	_, err := Parse([]byte(`{"type":"chat"}`))
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestParse_CreateTask(t *testing.T) {
	in, err := Parse([]byte(`{"type":"create_task","title":"buy milk","dueDate":"2026-09-01T10:00:00Z","priority":"high"}`))
	require.NoError(t, err)
	assert.Equal(t, "buy milk", in.Title)
	require.NotNil(t, in.DueDate)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), in.DueDate.UTC())
	require.NotNil(t, in.Priority)
	assert.Equal(t, domain.PriorityHigh, *in.Priority)
}

func TestParse_CreateTaskValidation(t *testing.T) {
	_, err := Parse([]byte(`{"type":"create_task"}`))
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = Parse([]byte(`{"type":"create_task","title":"x","priority":"urgent"}`))
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestParse_TaskOpsRequireID(t *testing.T) {
	for _, typ := range []string{TypeCompleteTask, TypeUpdateTask, TypeDeleteTask} {
		_, err := Parse([]byte(`{"type":"` + typ + `"}`))
		require.Error(t, err, typ)
		assert.Equal(t, domain.CodeValidation, domain.CodeOf(err), typ)
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"self_destruct"}`))
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnknownType, domain.CodeOf(err))

	_, err = Parse([]byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnknownType, domain.CodeOf(err))
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestTasksList_NeverNull(t *testing.T) {
	data, err := json.Marshal(TasksList(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks":[]`)
	assert.Contains(t, string(data), `"count":0`)
}

func TestOutboundFrames(t *testing.T) {
	conn := Connected("alice")
	assert.Equal(t, TypeConnected, conn.Type)
	assert.Equal(t, "alice", conn.UserID)
	assert.False(t, conn.Timestamp.IsZero())

	resp := ChatResponse("hi there")
	assert.Equal(t, TypeChatResponse, resp.Type)
	assert.Equal(t, "hi there", resp.Content)

	task := domain.Task{ID: "t1", Title: "buy milk"}
	assert.Equal(t, TypeTaskCreated, TaskCreated(task).Type)
	assert.Equal(t, TypeTaskUpdated, TaskUpdated(task).Type)
	assert.Equal(t, TypeTaskCompleted, TaskCompleted(task).Type)
	assert.Equal(t, "t1", TaskDeleted("t1").TaskID)
	assert.Equal(t, TypePong, Pong().Type)
}

func TestErrorFrame(t *testing.T) {
	frame := ErrorFrame(domain.NewError(domain.CodeRateLimited, "too many chat calls"))
	assert.Equal(t, TypeError, frame.Type)
	assert.Equal(t, domain.CodeRateLimited, frame.Error)
	assert.Equal(t, "too many chat calls", frame.Details)

	frame = ErrorFrame(errors.New("disk on fire"))
	assert.Equal(t, domain.CodeBackend, frame.Error)
	assert.Equal(t, "disk on fire", frame.Details)
}
