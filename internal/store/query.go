package store

import (
	"sort"

	"takjil/internal/geo"
	"takjil/internal/venues"
)

// Visible is the list projection: every record that is not rejected.
func (s *Store) Visible() []venues.Record {
	return venues.Visible(s.Snapshot())
}

// Verified is the map projection.
func (s *Store) Verified() []venues.Record {
	return venues.WithStatus(s.Snapshot(), venues.StatusVerified)
}

// Pending is the moderation queue, newest first.
func (s *Store) Pending() []venues.Record {
	out := venues.WithStatus(s.Snapshot(), venues.StatusPending)
	venues.SortNewest(out)
	return out
}

func (s *Store) Search(text string, verifiedOnly bool) []venues.Record {
	return venues.Search(s.Snapshot(), text, verifiedOnly)
}

// Nearby is a visible venue with its distance from the user.
type Nearby struct {
	venues.Record
	Meters   float64 `json:"meters"`
	Distance string  `json:"distance"`
}

// Nearby returns visible venues ordered by distance from origin. limit <= 0
// returns all of them.
func (s *Store) Nearby(origin geo.Point, limit int) []Nearby {
	visible := s.Visible()
	out := make([]Nearby, 0, len(visible))
	for _, r := range visible {
		m := geo.Distance(origin.Lat, origin.Lng, r.Location.Lat, r.Location.Lng)
		out = append(out, Nearby{Record: r, Meters: m, Distance: geo.Format(m)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Meters < out[j].Meters })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
