package orders

import (
	"encoding/json"
	"fmt"
)

type Action string

const ActionProcessOrder Action = "PROCESS_ORDER"

// Task is the queue message body.
type Task struct {
	Action  Action `json:"action"`
	OrderID string `json:"orderId"`
}

func NewProcessOrderTask(orderID string) Task {
	return Task{Action: ActionProcessOrder, OrderID: orderID}
}

func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses and validates a queue body. Unknown actions come back
// with ErrUnknownAction so the caller can drop them; anything unparseable is
// ErrMalformedTask.
func DecodeTask(b []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	switch t.Action {
	case ActionProcessOrder:
		if t.OrderID == "" {
			return Task{}, fmt.Errorf("%w: missing orderId", ErrMalformedTask)
		}
		return t, nil
	case "":
		return Task{}, fmt.Errorf("%w: missing action", ErrMalformedTask)
	default:
		return t, fmt.Errorf("%w: %q", ErrUnknownAction, t.Action)
	}
}
