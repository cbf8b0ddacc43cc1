package models

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s names one of the board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task represents a single card on the kanban board.
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	CreatedAt   int64    `json:"created_at"`
	Tags        []string `json:"tags"`
}

// Board holds tasks partitioned into the three columns.
type Board struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"inprogress"`
	Done       []Task `json:"done"`
}

// GroupByStatus partitions tasks into columns, keeping their relative order.
// Tasks with an unknown status land in the todo column so none are lost.
func GroupByStatus(tasks []Task) Board {
	b := Board{Todo: []Task{}, InProgress: []Task{}, Done: []Task{}}
	for _, t := range tasks {
		switch t.Status {
		case StatusInProgress:
			b.InProgress = append(b.InProgress, t)
		case StatusDone:
			b.Done = append(b.Done, t)
		default:
			b.Todo = append(b.Todo, t)
		}
	}
	return b
}

// Column returns the tasks for a single status.
func (b Board) Column(s Status) []Task {
	switch s {
	case StatusInProgress:
		return b.InProgress
	case StatusDone:
		return b.Done
	default:
		return b.Todo
	}
}

// Total counts the tasks across all columns.
func (b Board) Total() int {
	return len(b.Todo) + len(b.InProgress) + len(b.Done)
}
