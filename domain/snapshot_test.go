package domain

import (
	"reflect"
	"testing"
)

func sampleSnapshot() Snapshot {
	return Snapshot{Categories: []Category{
		{ID: "1", Name: "Inbox", Tasks: []Task{
			{ID: "a", Title: "A"},
			{ID: "b", Title: "B"},
			{ID: "c", Title: "C", Completed: true},
		}},
		{ID: "doc-2", Name: "Later", Tasks: []Task{{ID: "a", Title: "Other A"}}},
	}}
}

func TestToggleTaskNegatesOnlyTarget(t *testing.T) {
	before := sampleSnapshot()

	after, ok := ToggleTask(before, "1", "b")
	if !ok {
		t.Fatal("expected toggle to find task")
	}
	if !after.Categories[0].Tasks[1].Completed {
		t.Fatalf("expected task b completed, got %#v", after.Categories[0].Tasks[1])
	}
	if before.Categories[0].Tasks[1].Completed {
		t.Fatal("input snapshot was mutated")
	}
	if after.Categories[0].Tasks[0] != before.Categories[0].Tasks[0] || after.Categories[0].Tasks[2] != before.Categories[0].Tasks[2] {
		t.Fatalf("sibling tasks changed: %#v", after.Categories[0].Tasks)
	}
	if &after.Categories[1].Tasks[0] != &before.Categories[1].Tasks[0] {
		t.Fatal("untouched category should share its task slice")
	}
}

func TestToggleTaskTwiceRestores(t *testing.T) {
	before := sampleSnapshot()
	once, _ := ToggleTask(before, "1", "c")
	twice, _ := ToggleTask(once, "1", "c")
	if !reflect.DeepEqual(before, twice) {
		t.Fatalf("double toggle should restore snapshot: %#v", twice)
	}
}

func TestToggleTaskMissingIsNoop(t *testing.T) {
	before := sampleSnapshot()
	tests := []struct {
		name     string
		category ID
		task     ID
	}{
		{name: "unknownCategory", category: "9", task: "a"},
		{name: "unknownTask", category: "1", task: "z"},
		{name: "taskInOtherCategory", category: "doc-2", task: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after, ok := ToggleTask(before, tt.category, tt.task)
			if ok {
				t.Fatal("expected no-op")
			}
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("snapshot changed on no-op: %#v", after)
			}
		})
	}
}

func TestRemoveTaskPreservesOrder(t *testing.T) {
	before := sampleSnapshot()

	after, ok := RemoveTask(before, "1", "b")
	if !ok {
		t.Fatal("expected remove to find task")
	}
	var ids []ID
	for _, task := range after.Categories[0].Tasks {
		ids = append(ids, task.ID)
	}
	if !reflect.DeepEqual(ids, []ID{"a", "c"}) {
		t.Fatalf("unexpected remaining ids: %v", ids)
	}
	if len(before.Categories[0].Tasks) != 3 {
		t.Fatal("input snapshot was mutated")
	}
	if len(after.Categories[1].Tasks) != 1 {
		t.Fatalf("other category changed: %#v", after.Categories[1])
	}
}

func TestRemoveTaskMissingIsNoop(t *testing.T) {
	before := sampleSnapshot()
	if _, ok := RemoveTask(before, "1", "zzz"); ok {
		t.Fatal("expected no-op for unknown task")
	}
	if _, ok := RemoveTask(before, "404", "a"); ok {
		t.Fatal("expected no-op for unknown category")
	}
}

func TestGroupTasksKeepsFirstAppearanceOrder(t *testing.T) {
	work := &CategoryRef{ID: "w", Name: "Work"}
	home := &CategoryRef{ID: "h", Name: "Home", Color: "#0f0"}
	snap := GroupTasks([]Task{
		{ID: "1", Title: "one", Category: work},
		{ID: "2", Title: "two", Category: home},
		{ID: "3", Title: "three"},
		{ID: "4", Title: "four", Category: work},
		{ID: "4", Title: "four again", Category: work},
	})

	if len(snap.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(snap.Categories))
	}
	if snap.Categories[0].ID != "w" || snap.Categories[1].ID != "h" || snap.Categories[2].Name != UncategorizedName {
		t.Fatalf("unexpected category order: %#v", snap.Categories)
	}
	if snap.Categories[1].Color != "#0f0" {
		t.Fatalf("expected color carried over, got %q", snap.Categories[1].Color)
	}
	if got := len(snap.Categories[0].Tasks); got != 2 {
		t.Fatalf("expected duplicate task dropped, got %d tasks", got)
	}
	if snap.TaskCount() != 4 {
		t.Fatalf("unexpected task count %d", snap.TaskCount())
	}
}

func TestGroupTasksMergesEmptyCategoryIDsIntoOneBucket(t *testing.T) {
	snap := GroupTasks([]Task{
		{ID: "1", Title: "no ref"},
		{ID: "2", Title: "ref without id", Category: &CategoryRef{Name: "Ghost"}},
		{ID: "3", Title: "filed", Category: &CategoryRef{ID: "w", Name: "Work"}},
	})

	if len(snap.Categories) != 2 {
		t.Fatalf("expected Work plus one bucket, got %#v", snap.Categories)
	}
	bucket := snap.Categories[1]
	if bucket.ID != "" || bucket.Name != UncategorizedName || len(bucket.Tasks) != 2 {
		t.Fatalf("unexpected bucket: %#v", bucket)
	}

	next, ok := ToggleTask(snap, "", "2")
	if !ok {
		t.Fatal("task in the bucket should be reachable")
	}
	if task, _ := next.FindTask("", "2"); !task.Completed {
		t.Fatalf("expected toggled task, got %#v", task)
	}
	if _, ok := RemoveTask(snap, "", "1"); !ok {
		t.Fatal("task in the bucket should be removable")
	}
}

func TestFindTask(t *testing.T) {
	snap := sampleSnapshot()
	task, ok := snap.FindTask("doc-2", "a")
	if !ok || task.Title != "Other A" {
		t.Fatalf("unexpected lookup result: %#v %v", task, ok)
	}
}
