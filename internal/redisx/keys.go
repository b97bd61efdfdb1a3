package redisx

import "time"

const (
	// Fulfillment tasks: stream orders:tasks, entry field "body" -> task JSON
	DefaultTaskStream = "orders:tasks"
	DefaultTaskGroup  = "order-workers"
	fieldBody         = "body"

	errBusyGroup = "BUSYGROUP Consumer Group name already exists"
)

var DefaultVisibility = 30 * time.Second
