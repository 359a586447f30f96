package domain

// Snapshot is an in-memory copy of the whole category/task collection.
// Snapshots are treated as immutable values: transforms return a new
// Snapshot and leave the receiver and all untouched categories shared.
type Snapshot struct {
	Categories []Category `json:"categories"`
}

// CategoryIndex returns the position of the category with the given id, or -1.
func (s Snapshot) CategoryIndex(id ID) int {
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTask looks a task up inside the given category.
func (s Snapshot) FindTask(categoryID, taskID ID) (Task, bool) {
	ci := s.CategoryIndex(categoryID)
	if ci < 0 {
		return Task{}, false
	}
	ti := s.Categories[ci].taskIndex(taskID)
	if ti < 0 {
		return Task{}, false
	}
	return s.Categories[ci].Tasks[ti], true
}

// TaskCount returns the number of tasks across all categories.
func (s Snapshot) TaskCount() int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Tasks)
	}
	return n
}

// ToggleTask negates the completion flag of one task. The returned snapshot
// shares every category except the owning one, which gets a fresh task slice.
// ok is false when either id is absent, in which case s is returned as is.
func ToggleTask(s Snapshot, categoryID, taskID ID) (Snapshot, bool) {
	ci := s.CategoryIndex(categoryID)
	if ci < 0 {
		return s, false
	}
	ti := s.Categories[ci].taskIndex(taskID)
	if ti < 0 {
		return s, false
	}
	owner := s.Categories[ci]
	tasks := make([]Task, len(owner.Tasks))
	copy(tasks, owner.Tasks)
	tasks[ti].Completed = !tasks[ti].Completed
	owner.Tasks = tasks
	return s.withCategory(ci, owner), true
}

// RemoveTask filters one task out of its category, preserving the relative
// order of the rest. ok is false when either id is absent.
func RemoveTask(s Snapshot, categoryID, taskID ID) (Snapshot, bool) {
	ci := s.CategoryIndex(categoryID)
	if ci < 0 {
		return s, false
	}
	ti := s.Categories[ci].taskIndex(taskID)
	if ti < 0 {
		return s, false
	}
	owner := s.Categories[ci]
	tasks := make([]Task, 0, len(owner.Tasks)-1)
	tasks = append(tasks, owner.Tasks[:ti]...)
	tasks = append(tasks, owner.Tasks[ti+1:]...)
	owner.Tasks = tasks
	return s.withCategory(ci, owner), true
}

func (s Snapshot) withCategory(i int, c Category) Snapshot {
	cats := make([]Category, len(s.Categories))
	copy(cats, s.Categories)
	cats[i] = c
	return Snapshot{Categories: cats}
}

// GroupTasks builds a snapshot from a flat task list whose entries carry a
// category back-reference. Categories appear in order of first occurrence.
// Tasks without a category, or whose reference has no id, share one
// trailing bucket, the only category with an empty id.
func GroupTasks(tasks []Task) Snapshot {
	var (
		cats  []Category
		index = make(map[ID]int)
		loose = Category{Name: UncategorizedName}
	)
	for _, t := range tasks {
		if t.Category == nil || t.Category.ID == "" {
			if loose.taskIndex(t.ID) < 0 {
				loose.Tasks = append(loose.Tasks, t)
			}
			continue
		}
		i, ok := index[t.Category.ID]
		if !ok {
			i = len(cats)
			index[t.Category.ID] = i
			cats = append(cats, Category{ID: t.Category.ID, Name: t.Category.Name, Color: t.Category.Color})
		}
		if cats[i].taskIndex(t.ID) >= 0 {
			continue
		}
		cats[i].Tasks = append(cats[i].Tasks, t)
	}
	if len(loose.Tasks) > 0 {
		cats = append(cats, loose)
	}
	return Snapshot{Categories: cats}
}
