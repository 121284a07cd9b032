package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// TodoItem is a single task in the agent's todo list.
type TodoItem struct {
	ID   int    `json:"id"`
	Task string `json:"task"`
	Done bool   `json:"done"`
}

// TodoList gives an agent task-planning awareness by injecting the current
// todo state as a system message before each model call. The list is
// shared: node code and tools can add and complete items between turns.
type TodoList struct {
	Base

	mu     sync.Mutex
	items  []TodoItem
	nextID int
}

// NewTodoList builds an empty list.
func NewTodoList() *TodoList {
	return &TodoList{Base: Base{MiddlewareName: "todo_list"}, nextID: 1}
}

// Add appends a task and returns its ID.
func (t *TodoList) Add(task string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.items = append(t.items, TodoItem{ID: id, Task: task})
	return id
}

// Complete marks a task done. Returns false for unknown IDs.
func (t *TodoList) Complete(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].ID == id {
			t.items[i].Done = true
			return true
		}
	}
	return false
}

// Items returns a snapshot of the list.
func (t *TodoList) Items() []TodoItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TodoItem, len(t.items))
	copy(out, t.items)
	return out
}

// BeforeModel implements Middleware.
func (t *TodoList) BeforeModel(_ context.Context, req *ModelRequest) {
	items := t.Items()
	if len(items) == 0 {
		return
	}
	req.Messages = append([]model.Message{model.SystemMessage(formatTodoList(items))}, req.Messages...)
}

func formatTodoList(items []TodoItem) string {
	var b strings.Builder
	b.WriteString("Current TODO list:\n")
	for _, item := range items {
		mark := " "
		if item.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] #%d: %s\n", mark, item.ID, item.Task)
	}
	return b.String()
}
