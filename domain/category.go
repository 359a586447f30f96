package domain

// UncategorizedName labels the bucket holding tasks without a category.
const UncategorizedName = "Uncategorized"

// Category groups tasks in the order the server returned them.
type Category struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Tasks []Task `json:"tasks"`
}

// Ref returns the back-reference stored on tasks of this category.
func (c Category) Ref() *CategoryRef {
	return &CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color}
}

func (c Category) taskIndex(id ID) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
