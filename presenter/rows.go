package presenter

import "taskboard/domain"

const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
)

// Row is one task as the page shows it, flattened with its category.
type Row struct {
	CategoryID    domain.ID `json:"categoryId"`
	CategoryName  string    `json:"categoryName"`
	CategoryColor string    `json:"categoryColor,omitempty"`
	TaskID        domain.ID `json:"taskId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Completed     bool      `json:"completed"`
	Status        string    `json:"status"`
	Deadline      string    `json:"deadline,omitempty"`
}

// Rows lists every task in category order. Categories without tasks
// contribute no rows.
func Rows(s domain.Snapshot) []Row {
	rows := make([]Row, 0, s.TaskCount())
	for _, c := range s.Categories {
		for _, t := range c.Tasks {
			rows = append(rows, Row{
				CategoryID:    c.ID,
				CategoryName:  c.Name,
				CategoryColor: c.Color,
				TaskID:        t.ID,
				Title:         t.Title,
				Description:   t.Description,
				Completed:     t.Completed,
				Status:        status(t.Completed),
				Deadline:      t.Deadline,
			})
		}
	}
	return rows
}

func status(completed bool) string {
	if completed {
		return StatusCompleted
	}
	return StatusPending
}
