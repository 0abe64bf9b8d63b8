package entity

import (
	"cmp"
)

// TaskCategories are the checklist groupings, in display order.
var TaskCategories = Enum{
	Options: []Option{
		{Value: "decoracion", Label: "Decoración"},
		{Value: "papeleo", Label: "Papeleo"},
		{Value: "catering", Label: "Catering"},
		{Value: "viaje-de-novios", Label: "Viaje de novios"},
		{Value: "anillos", Label: "Anillos"},
		{Value: "vestimenta", Label: "Vestimenta"},
		{Value: "invitados", Label: "Invitados"},
		{Value: "otro", Label: "Otro"},
	},
	Fallback: "otro",
}

// TaskPriorities are the allowed task priorities.
var TaskPriorities = Enum{
	Options: []Option{
		{Value: "alta", Label: "Alta"},
		{Value: "media", Label: "Media"},
		{Value: "baja", Label: "Baja"},
	},
	Fallback: "media",
}

// Task is one checklist item.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
	Completed   bool   `json:"completed"`
	CreatedAt   *int64 `json:"createdAt"`
	UpdatedAt   *int64 `json:"updatedAt"`
}

// EntityID implements Entity.
func (t Task) EntityID() string { return t.ID }

// Clone implements Entity.
func (t Task) Clone() Task {
	t.CreatedAt = copyInt64(t.CreatedAt)
	t.UpdatedAt = copyInt64(t.UpdatedAt)
	return t
}

// Record implements Entity.
func (t Task) Record() Record {
	return Record{
		"id":          t.ID,
		"description": t.Description,
		"category":    t.Category,
		"priority":    t.Priority,
		"dueDate":     t.DueDate,
		"completed":   t.Completed,
		"createdAt":   timestampValue(t.CreatedAt),
		"updatedAt":   timestampValue(t.UpdatedAt),
	}
}

// NormalizeTask builds a Task from r, or reports false when the
// description is blank.
func NormalizeTask(r Record) (Task, bool) {
	if r == nil {
		return Task{}, false
	}
	description := Text(r["description"])
	if description == "" {
		return Task{}, false
	}
	return Task{
		ID:          normalizeID(r["id"]),
		Description: description,
		Category:    TaskCategories.Normalize(r["category"]),
		Priority:    TaskPriorities.Normalize(r["priority"]),
		DueDate:     NormalizeDate(r["dueDate"]),
		Completed:   Truthy(r["completed"]),
		CreatedAt:   ToTimestamp(r["createdAt"]),
		UpdatedAt:   ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareTasks puts the most recently created tasks first.
func CompareTasks(a, b Task) int {
	if c := cmp.Compare(timestampOrZero(b.CreatedAt), timestampOrZero(a.CreatedAt)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeTask(changes Record) Record {
	return newSanitizer(changes).
		identity("description").
		enum("category", TaskCategories).
		enum("priority", TaskPriorities).
		date("dueDate").
		flag("completed").
		createdAt().
		result()
}

// Tasks is the checklist collection.
var Tasks = Kind[Task]{
	Name:       "tasks",
	StorageKey: "wedding-checklist-tasks",
	Normalize:  NormalizeTask,
	Compare:    CompareTasks,
	Sanitize:   sanitizeTask,
}
