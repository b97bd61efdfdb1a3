package orders

type Status string

const (
	StatusPending   Status = "Pending"
	StatusProcessed Status = "Processed"
	StatusFailed    Status = "Failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusProcessed: true, StatusFailed: true},
	StatusProcessed: {},
	StatusFailed:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal statuses are never transitioned again by the worker.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}
