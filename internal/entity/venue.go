package entity

import "cmp"

// VenueStatuses track where a venue candidate stands.
var VenueStatuses = Enum{
	Options: []Option{
		{Value: "por-visitar", Label: "Por visitar"},
		{Value: "visitado", Label: "Visitado"},
		{Value: "reservado", Label: "Reservado"},
		{Value: "descartado", Label: "Descartado"},
	},
	Fallback: "por-visitar",
}

// Venue is a candidate location for the ceremony or banquet.
type Venue struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Contact   string   `json:"contact"`
	Capacity  *int     `json:"capacity"`
	Price     *float64 `json:"price"`
	Rating    *int     `json:"rating"`
	Status    string   `json:"status"`
	VisitDate string   `json:"visitDate"`
	Notes     string   `json:"notes"`
	CreatedAt *int64   `json:"createdAt"`
	UpdatedAt *int64   `json:"updatedAt"`
}

// EntityID implements Entity.
func (v Venue) EntityID() string { return v.ID }

// Clone implements Entity.
func (v Venue) Clone() Venue {
	v.Capacity = copyInt(v.Capacity)
	v.Price = copyFloat(v.Price)
	v.Rating = copyInt(v.Rating)
	v.CreatedAt = copyInt64(v.CreatedAt)
	v.UpdatedAt = copyInt64(v.UpdatedAt)
	return v
}

// Record implements Entity.
func (v Venue) Record() Record {
	return Record{
		"id":        v.ID,
		"name":      v.Name,
		"location":  v.Location,
		"contact":   v.Contact,
		"capacity":  intValue(v.Capacity),
		"price":     floatValue(v.Price),
		"rating":    intValue(v.Rating),
		"status":    v.Status,
		"visitDate": v.VisitDate,
		"notes":     v.Notes,
		"createdAt": timestampValue(v.CreatedAt),
		"updatedAt": timestampValue(v.UpdatedAt),
	}
}

// NormalizeVenue builds a Venue from r, or reports false when the name is
// blank.
func NormalizeVenue(r Record) (Venue, bool) {
	if r == nil {
		return Venue{}, false
	}
	name := Text(r["name"])
	if name == "" {
		return Venue{}, false
	}
	return Venue{
		ID:        normalizeID(r["id"]),
		Name:      name,
		Location:  Text(r["location"]),
		Contact:   Text(r["contact"]),
		Capacity:  OptionalCount(r["capacity"]),
		Price:     OptionalAmount(r["price"]),
		Rating:    Rating(r["rating"]),
		Status:    VenueStatuses.Normalize(r["status"]),
		VisitDate: NormalizeDate(r["visitDate"]),
		Notes:     Text(r["notes"]),
		CreatedAt: ToTimestamp(r["createdAt"]),
		UpdatedAt: ToTimestamp(r["updatedAt"]),
	}, true
}

// CompareVenues lists the cheapest candidates first; venues without a
// price go last, and ties fall back to the name.
func CompareVenues(a, b Venue) int {
	switch {
	case a.Price == nil && b.Price != nil:
		return 1
	case a.Price != nil && b.Price == nil:
		return -1
	case a.Price != nil && b.Price != nil:
		if c := cmp.Compare(*a.Price, *b.Price); c != 0 {
			return c
		}
	}
	if c := CompareNames(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sanitizeVenue(changes Record) Record {
	return newSanitizer(changes).
		identity("name").
		text("location", "contact", "notes").
		optional("capacity", optionalCountValue).
		optional("price", optionalAmountValue).
		optional("rating", ratingValue).
		enum("status", VenueStatuses).
		date("visitDate").
		createdAt().
		result()
}

// Venues is the venue shortlist collection.
var Venues = Kind[Venue]{
	Name:       "venues",
	StorageKey: "wedding-venues",
	Normalize:  NormalizeVenue,
	Compare:    CompareVenues,
	Sanitize:   sanitizeVenue,
}
