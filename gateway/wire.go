package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard/domain"
)

// The backend has shipped several response shapes over time: bare arrays or
// {data: ...} envelopes, flat entries or entries wrapped in "attributes",
// English or Spanish field names. Everything below maps those shapes onto
// the domain model so nothing past the gateway ever sees them.

var errUnexpectedShape = errors.New("unexpected response shape")

var (
	nameKeys        = []string{"name", "nombre"}
	titleKeys       = []string{"title", "titulo"}
	descriptionKeys = []string{"description", "descripcion"}
	completedKeys   = []string{"completed", "completada"}
	tasksKeys       = []string{"tasks", "tareas"}
	categoryKeys    = []string{"category", "categoria"}
	deadlineKeys    = []string{"deadline", "fecha_limite"}
)

type record map[string]any

// unwrap flattens an "attributes" wrapper, keeping the outer identifiers.
func unwrap(v any) (record, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	attrs, ok := m["attributes"].(map[string]any)
	if !ok {
		return record(m), true
	}
	out := make(record, len(attrs)+2)
	for k, v := range attrs {
		out[k] = v
	}
	for _, k := range []string{"id", "documentId"} {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, true
}

// listOf accepts a bare array, a {data: [...]} relation, or a single entry.
func listOf(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		if inner, ok := t["data"]; ok {
			return listOf(inner)
		}
		return []any{t}
	default:
		return nil
	}
}

func (r record) value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(keys ...string) string {
	v, ok := r.value(keys...)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// boolean normalizes missing and null flags to false.
func (r record) boolean(keys ...string) bool {
	v, ok := r.value(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case json.Number:
		n, err := t.Float64()
		return err == nil && n != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

func (r record) identity(field string) domain.ID {
	primary, fallback := IDFieldID, IDFieldDocumentID
	if field == IDFieldDocumentID {
		primary, fallback = IDFieldDocumentID, IDFieldID
	}
	if v, ok := r.value(primary); ok {
		return idOf(v)
	}
	if v, ok := r.value(fallback); ok {
		return idOf(v)
	}
	return ""
}

func idOf(v any) domain.ID {
	switch t := v.(type) {
	case string:
		return domain.ID(t)
	case json.Number:
		return domain.ID(t.String())
	case float64:
		return domain.ID(strconv.FormatFloat(t, 'f', -1, 64))
	case int64:
		return domain.ID(strconv.FormatInt(t, 10))
	default:
		return domain.ID(fmt.Sprint(t))
	}
}

type decoder struct {
	idField string
}

func (d decoder) document(raw []byte) ([]any, error) {
	var doc any
	if err := wireAPI.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	switch t := doc.(type) {
	case []any:
		return t, nil
	case map[string]any:
		data, ok := t["data"]
		if !ok {
			return nil, errUnexpectedShape
		}
		if list, ok := data.([]any); ok {
			return list, nil
		}
		return nil, errUnexpectedShape
	default:
		return nil, errUnexpectedShape
	}
}

func (d decoder) categories(raw []byte) (domain.Snapshot, error) {
	items, err := d.document(raw)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode categories: %w", err)
	}
	snap := domain.Snapshot{Categories: make([]domain.Category, 0, len(items))}
	seen := make(map[domain.ID]struct{}, len(items))
	for _, item := range items {
		rec, ok := unwrap(item)
		if !ok {
			return domain.Snapshot{}, fmt.Errorf("decode categories: %w", errUnexpectedShape)
		}
		cat := domain.Category{
			ID:    rec.identity(d.idField),
			Name:  rec.str(nameKeys...),
			Color: rec.str("color"),
		}
		if _, dup := seen[cat.ID]; dup {
			continue
		}
		seen[cat.ID] = struct{}{}
		rel, _ := rec.value(tasksKeys...)
		ref := cat.Ref()
		taskSeen := make(map[domain.ID]struct{})
		for _, rawTask := range listOf(rel) {
			trec, ok := unwrap(rawTask)
			if !ok {
				continue
			}
			task := d.task(trec)
			if _, dup := taskSeen[task.ID]; dup {
				continue
			}
			taskSeen[task.ID] = struct{}{}
			task.Category = ref
			cat.Tasks = append(cat.Tasks, task)
		}
		snap.Categories = append(snap.Categories, cat)
	}
	return snap, nil
}

func (d decoder) tasks(raw []byte) ([]domain.Task, error) {
	items, err := d.document(raw)
	if err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	out := make([]domain.Task, 0, len(items))
	for _, item := range items {
		rec, ok := unwrap(item)
		if !ok {
			return nil, fmt.Errorf("decode tasks: %w", errUnexpectedShape)
		}
		out = append(out, d.task(rec))
	}
	return out, nil
}

func (d decoder) task(rec record) domain.Task {
	t := domain.Task{
		ID:          rec.identity(d.idField),
		Title:       rec.str(titleKeys...),
		Description: rec.str(descriptionKeys...),
		Completed:   rec.boolean(completedKeys...),
		Deadline:    rec.str(deadlineKeys...),
	}
	if rel, ok := rec.value(categoryKeys...); ok {
		t.Category = d.categoryRef(rel)
	}
	return t
}

func (d decoder) categoryRef(v any) *domain.CategoryRef {
	if m, ok := v.(map[string]any); ok {
		if inner, wrapped := m["data"]; wrapped {
			if inner == nil {
				return nil
			}
			v = inner
		}
	}
	rec, ok := unwrap(v)
	if !ok {
		// Unpopulated relations come back as the bare id.
		if v == nil {
			return nil
		}
		return &domain.CategoryRef{ID: idOf(v)}
	}
	return &domain.CategoryRef{
		ID:    rec.identity(d.idField),
		Name:  rec.str(nameKeys...),
		Color: rec.str("color"),
	}
}

// fieldNames are the attribute names written for a task.
type fieldNames struct {
	title, description, completed, category string
}

var (
	englishFields = fieldNames{title: "title", description: "description", completed: "completed", category: "category"}
	spanishFields = fieldNames{title: "titulo", description: "descripcion", completed: "completada", category: "categoria"}
)

func fieldNamesFor(lang string) fieldNames {
	if lang == FieldNamesSpanish {
		return spanishFields
	}
	return englishFields
}

// encoder shapes request bodies for the configured backend flavour.
type encoder struct {
	envelope     bool
	categoryLink string
	names        fieldNames
}

func (e encoder) wrap(fields map[string]any) map[string]any {
	if !e.envelope {
		return fields
	}
	return map[string]any{"data": fields}
}

func (e encoder) completion(completed bool) map[string]any {
	return e.wrap(map[string]any{e.names.completed: completed})
}

func (e encoder) create(in domain.TaskInput) map[string]any {
	fields := map[string]any{
		e.names.title:       strings.TrimSpace(in.Title),
		e.names.description: strings.TrimSpace(in.Description),
		e.names.completed:   in.Completed,
	}
	if in.CategoryID != "" {
		link := linkValue(in.CategoryID)
		if e.categoryLink == CategoryLinkConnect {
			fields[e.names.category] = map[string]any{"connect": []any{link}}
		} else {
			fields[e.names.category] = link
		}
	}
	if in.Deadline != "" {
		fields["deadline"] = in.Deadline
	}
	return e.wrap(fields)
}

// linkValue sends numeric ids as JSON numbers and anything else verbatim.
func linkValue(id domain.ID) any {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	return string(id)
}
