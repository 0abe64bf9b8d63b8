package entity

import "cmp"

// GuestSides record which partner a guest is invited by.
var GuestSides = Enum{
	Options: []Option{
		{Value: "novia", Label: "Novia"},
		{Value: "novio", Label: "Novio"},
		{Value: "ambos", Label: "Ambos"},
	},
	Fallback: "ambos",
}

// GuestRSVPs are the invitation answers.
var GuestRSVPs = Enum{
	Options: []Option{
		{Value: "pendiente", Label: "Pendiente"},
		{Value: "confirmado", Label: "Confirmado"},
		{Value: "rechazado", Label: "Rechazado"},
	},
	Fallback: "pendiente",
}

// Guest is one invitation on the guest list.
type Guest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Side       string `json:"side"`
	RSVP       string `json:"rsvp"`
	Companions int    `json:"companions"`
	Table      *int   `json:"table"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Dietary    string `json:"dietary"`
	Notes      string `json:"notes"`
	CreatedAt  *int64 `json:"createdAt"`
	UpdatedAt  *int64 `json:"updatedAt"`
}

// EntityID implements Entity.
func (g Guest) EntityID() string { return g.ID }

// Clone implements Entity.
func (g Guest) Clone() Guest {
	g.Table = copyInt(g.Table)
	g.CreatedAt = copyInt64(g.CreatedAt)
	g.UpdatedAt = copyInt64(g.UpdatedAt)
	return g
}

// Record implements Entity.
func (g Guest) Record() Record {
	return Record{
		"id":         g.ID,
		"name":       g.Name,
		"side":       g.Side,
		"rsvp":       g.RSVP,
		"companions": int64(g.Companions),
		"table":      intValue(g.Table),
		"email":      g.Email,
		"phone":      g.Phone,
		"dietary":    g.Dietary,
		"notes":      g.Notes,
		"createdAt":  timestampValue(g.CreatedAt),
		"updatedAt":  timestampValue(g.UpdatedAt),
	}
}

// Headcount is the guest plus confirmed companions.
func (g Guest) Headcount() int {
	return 1 + g.Companions
}

// NormalizeGuest builds a Guest from r, or reports false when the name is
// blank.
func NormalizeGuest(r Record) (Guest, bool) {
	if r == nil {
		return Guest{}, false
	}
	name := Text(r["name"])
	if name == "" {
		return Guest{}, false
	}
	return Guest{
		ID:         normalizeID(r["id"]),
		Name:       name,
		Side:       GuestSides.Normalize(r["side"]),
		RSVP:       GuestRSVPs.Normalize(r["rsvp"]),
		Companions: Count(r["companions"]),
		Table:      OptionalCount(r["table"]),
		Email:      Text(r["email"]),
		Phone:      Text(r["phone"]),
		Dietary:    Text(r["dietary"]),
		Notes:      Text(r["notes"]),
		CreatedAt:  ToTimestamp(r["createdAt"]),
		UpdatedAt:  ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareGuests orders alphabetically by name.
func CompareGuests(a, b Guest) int {
	if c := CompareNames(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeGuest(changes Record) Record {
	return newSanitizer(changes).
		identity("name").
		enum("side", GuestSides).
		enum("rsvp", GuestRSVPs).
		count("companions").
		optional("table", optionalCountValue).
		text("email", "phone", "dietary", "notes").
		createdAt().
		result()
}

// Guests is the guest list collection.
var Guests = Kind[Guest]{
	Name:       "guests",
	StorageKey: "wedding-guests",
	Normalize:  NormalizeGuest,
	Compare:    CompareGuests,
	Sanitize:   sanitizeGuest,
}
