package domain

// ID identifies a category or task. Backends hand out either numeric surrogate
// keys or opaque document ids; both are carried as strings and only ever
// compared for equality.
type ID string

func (id ID) String() string { return string(id) }

// Task represents a single board item.
type Task struct {
	ID          ID           `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Completed   bool         `json:"completed"`
	Deadline    string       `json:"deadline,omitempty"`
	Category    *CategoryRef `json:"category,omitempty"`
}

// CategoryRef is the back-reference a task carries to its owning category.
type CategoryRef struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
