package entry

import "time"

// Entry is a raw user-submitted achievement note: what was done, what it
// affected, and what came of it. Entries are immutable once created.
type Entry struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Impact    string    `json:"impact"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter controls which entries to return.
type ListFilter struct {
	Category string
	Limit    int
	Offset   int
}
