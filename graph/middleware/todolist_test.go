package middleware

import (
	"context"
	"strings"
	"testing"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

func TestTodoListAddAndComplete(t *testing.T) {
	todos := NewTodoList()
	id1 := todos.Add("Write tests")
	id2 := todos.Add("Fix bug")
	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d,%d", id1, id2)
	}
	if !todos.Complete(id1) {
		t.Error("Complete(1) = false")
	}
	if todos.Complete(99) {
		t.Error("Complete(99) = true for unknown id")
	}
	items := todos.Items()
	if !items[0].Done || items[1].Done {
		t.Errorf("items = %+v", items)
	}
}

func TestTodoListInjectsSystemMessage(t *testing.T) {
	todos := NewTodoList()
	todos.Add("Ship release")
	req := ModelRequest{Messages: []model.Message{model.HumanMessage("status?")}}

	todos.BeforeModel(context.Background(), &req)

	if len(req.Messages) != 2 {
		t.Fatalf("len = %d, want injected message", len(req.Messages))
	}
	if !req.Messages[0].IsSystem() || !strings.Contains(req.Messages[0].Content, "Ship release") {
		t.Errorf("injected = %+v", req.Messages[0])
	}
}

func TestTodoListEmptyInjectsNothing(t *testing.T) {
	todos := NewTodoList()
	req := ModelRequest{Messages: []model.Message{model.HumanMessage("hi")}}
	todos.BeforeModel(context.Background(), &req)
	if len(req.Messages) != 1 {
		t.Errorf("len = %d, want untouched request", len(req.Messages))
	}
}
