package entity

import "cmp"

// IdeaCategories group mood-board entries.
var IdeaCategories = Enum{
	Options: []Option{
		{Value: "decoracion", Label: "Decoración"},
		{Value: "flores", Label: "Flores"},
		{Value: "vestimenta", Label: "Vestimenta"},
		{Value: "peinado", Label: "Peinado y maquillaje"},
		{Value: "papeleria", Label: "Papelería"},
		{Value: "fotografia", Label: "Fotografía"},
		{Value: "otro", Label: "Otro"},
	},
	Fallback: "otro",
}

// Idea is one mood-board card.
type Idea struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	ImageURL  string `json:"imageURL"`
	SourceURL string `json:"sourceURL"`
	Notes     string `json:"notes"`
	Favorite  bool   `json:"favorite"`
	CreatedAt *int64 `json:"createdAt"`
	UpdatedAt *int64 `json:"updatedAt"`
}

// EntityID implements Entity.
func (i Idea) EntityID() string { return i.ID }

// Clone implements Entity.
func (i Idea) Clone() Idea {
	i.CreatedAt = copyInt64(i.CreatedAt)
	i.UpdatedAt = copyInt64(i.UpdatedAt)
	return i
}

// Record implements Entity.
func (i Idea) Record() Record {
	return Record{
		"id":        i.ID,
		"title":     i.Title,
		"category":  i.Category,
		"imageURL":  i.ImageURL,
		"sourceURL": i.SourceURL,
		"notes":     i.Notes,
		"favorite":  i.Favorite,
		"createdAt": timestampValue(i.CreatedAt),
		"updatedAt": timestampValue(i.UpdatedAt),
	}
}

// NormalizeIdea builds an Idea from r, or reports false when the title is
// blank.
func NormalizeIdea(r Record) (Idea, bool) {
	if r == nil {
		return Idea{}, false
	}
	title := Text(r["title"])
	if title == "" {
		return Idea{}, false
	}
	return Idea{
		ID:        normalizeID(r["id"]),
		Title:     title,
		Category:  IdeaCategories.Normalize(r["category"]),
		ImageURL:  Text(r["imageURL"]),
		SourceURL: Text(r["sourceURL"]),
		Notes:     Text(r["notes"]),
		Favorite:  Truthy(r["favorite"]),
		CreatedAt: ToTimestamp(r["createdAt"]),
		UpdatedAt: ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareIdeas shows the newest cards first.
func CompareIdeas(a, b Idea) int {
	if c := cmp.Compare(timestampOrZero(b.CreatedAt), timestampOrZero(a.CreatedAt)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeIdea(changes Record) Record {
	return newSanitizer(changes).
		identity("title").
		enum("category", IdeaCategories).
		text("imageURL", "sourceURL", "notes").
		flag("favorite").
		createdAt().
		result()
}

// Ideas is the mood-board collection.
var Ideas = Kind[Idea]{
	Name:       "ideas",
	StorageKey: "wedding-moodboard-ideas",
	Normalize:  NormalizeIdea,
	Compare:    CompareIdeas,
	Sanitize:   sanitizeIdea,
}
