package statement

import "time"

// Statement is a narrative achievement statement derived from one or more
// win entries. Content mutates as refinement proceeds; a completed
// statement is archived in place, never deleted here.
type Statement struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	SourceEntryIDs []string  `json:"source_entry_ids"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListFilter controls which statements to return.
type ListFilter struct {
	Category  string
	Completed *bool
	Limit     int
	Offset    int
}
