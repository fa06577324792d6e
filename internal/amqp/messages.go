package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"gastos/internal/core"
)

// Action is the kind of change an ExpenseChangedMessage announces.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// RoutingKey is the key the message is published with, e.g. "expense.created".
func (a Action) RoutingKey() string {
	return "expense." + string(a)
}

// ExpenseChangedMessage announces a committed mutation of the expense
// collection. Expense is nil for deletions.
type ExpenseChangedMessage struct {
	Action    Action        `json:"action"`
	ID        string        `json:"id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseChangedMessage builds a created/updated message carrying e.
func NewExpenseChangedMessage(action Action, e core.Expense) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Action:    action,
		ID:        e.ID,
		Expense:   &e,
		Timestamp: time.Now(),
	}
}

// NewExpenseDeletedMessage builds a deleted message for id.
func NewExpenseDeletedMessage(id string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Action:    ActionDeleted,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and checks a message.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("missing expense id")
	}
	if msg.Action != ActionDeleted && msg.Expense == nil {
		return nil, fmt.Errorf("%s message without expense", msg.Action)
	}
	return &msg, nil
}
