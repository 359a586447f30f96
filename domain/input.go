package domain

import (
	"strings"
	"time"
)

// DeadlineLayout is the calendar date format used for task deadlines.
const DeadlineLayout = "2006-01-02"

// TaskInput carries the fields of a task to be created.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CategoryID  ID     `json:"categoryId,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

// Validate checks the fields required before a create request is issued.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if in.Deadline != "" {
		if _, err := time.Parse(DeadlineLayout, in.Deadline); err != nil {
			return &ValidationError{Field: "deadline", Reason: "must be YYYY-MM-DD"}
		}
	}
	return nil
}
