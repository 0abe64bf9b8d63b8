package entity

import "cmp"

// MilestoneStatuses track progress of a timeline milestone.
var MilestoneStatuses = Enum{
	Options: []Option{
		{Value: "pendiente", Label: "Pendiente"},
		{Value: "en-curso", Label: "En curso"},
		{Value: "hecho", Label: "Hecho"},
	},
	Fallback: "pendiente",
}

// Milestone is a dated point on the wedding timeline.
type Milestone struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
	CreatedAt *int64 `json:"createdAt"`
	UpdatedAt *int64 `json:"updatedAt"`
}

// EntityID implements Entity.
func (m Milestone) EntityID() string { return m.ID }

// Clone implements Entity.
func (m Milestone) Clone() Milestone {
	m.CreatedAt = copyInt64(m.CreatedAt)
	m.UpdatedAt = copyInt64(m.UpdatedAt)
	return m
}

// Record implements Entity.
func (m Milestone) Record() Record {
	return Record{
		"id":        m.ID,
		"title":     m.Title,
		"date":      m.Date,
		"time":      m.Time,
		"status":    m.Status,
		"notes":     m.Notes,
		"createdAt": timestampValue(m.CreatedAt),
		"updatedAt": timestampValue(m.UpdatedAt),
	}
}

// NormalizeMilestone builds a Milestone from r, or reports false when the
// title is blank. An invalid date degrades to "" without rejecting the
// record.
func NormalizeMilestone(r Record) (Milestone, bool) {
	if r == nil {
		return Milestone{}, false
	}
	title := Text(r["title"])
	if title == "" {
		return Milestone{}, false
	}
	return Milestone{
		ID:        normalizeID(r["id"]),
		Title:     title,
		Date:      NormalizeDate(r["date"]),
		Time:      ClockTime(r["time"]),
		Status:    MilestoneStatuses.Normalize(r["status"]),
		Notes:     Text(r["notes"]),
		CreatedAt: ToTimestamp(r["createdAt"]),
		UpdatedAt: ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareMilestones orders by date (undated last), then time, then
// creation.
func CompareMilestones(a, b Milestone) int {
	if a.Date != b.Date {
		switch {
		case a.Date == "":
			return 1
		case b.Date == "":
			return -1
		}
		return cmp.Compare(a.Date, b.Date)
	}
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	if c := cmp.Compare(timestampOrZero(a.CreatedAt), timestampOrZero(b.CreatedAt)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeMilestone(changes Record) Record {
	return newSanitizer(changes).
		identity("title").
		date("date").
		clock("time").
		enum("status", MilestoneStatuses).
		text("notes").
		createdAt().
		result()
}

// Milestones is the timeline collection.
var Milestones = Kind[Milestone]{
	Name:       "milestones",
	StorageKey: "wedding-timeline-milestones",
	Normalize:  NormalizeMilestone,
	Compare:    CompareMilestones,
	Sanitize:   sanitizeMilestone,
}
