package venues

import (
	"errors"
	"strings"
)

var (
	ErrVenueNotFound     = errors.New("venue not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a moderator may move a record from s to next.
// A rejected record only comes back through a fresh submission.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() {
		return false
	}
	return !(s == StatusRejected && next == StatusVerified)
}

type Location struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Record is a venue document as held by the backend collection.
type Record struct {
	ID         string   `json:"id,omitempty" validate:"required"`
	Name       string   `json:"name" validate:"required,max=200"`
	Address    string   `json:"address" validate:"max=500"`
	Location   Location `json:"location"`
	Menu       []string `json:"menu"`
	Notes      string   `json:"notes,omitempty"`
	Status     Status   `json:"status" validate:"oneof=pending verified rejected"`
	CreatedAt  int64    `json:"createdAt" validate:"min=0"` // epoch milliseconds
	CreatedBy  string   `json:"createdBy,omitempty"`
	Image      string   `json:"image,omitempty"`
	Portion    string   `json:"portion,omitempty"`
	IftarTime  string   `json:"iftarTime,omitempty"`
	ThumbsUp   int      `json:"thumbsUp" validate:"min=0"`
	ThumbsDown int      `json:"thumbsDown" validate:"min=0"`
}

// Visible reports whether the record belongs in list and map projections.
func (r Record) Visible() bool {
	return r.Status != StatusRejected
}

// Draft is a venue submission before the backend assigns an id.
type Draft struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Address   string   `json:"address" validate:"required,max=500"`
	Location  Location `json:"location"`
	Menu      []string `json:"menu" validate:"max=50,dive,max=100"`
	Notes     string   `json:"notes,omitempty" validate:"max=1000"`
	CreatedBy string   `json:"createdBy,omitempty"`
	Image     string   `json:"image,omitempty" validate:"omitempty,url"`
	Portion   string   `json:"portion,omitempty"`
	IftarTime string   `json:"iftarTime,omitempty"`

	// ImageData, when set and Image is empty, is uploaded before submission.
	ImageData []byte `json:"-"`
}

// CleanMenu drops blank menu entries and trims the rest.
func CleanMenu(menu []string) []string {
	out := make([]string, 0, len(menu))
	for _, item := range menu {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Record builds the document submitted for the draft.
func (d Draft) Record(createdAt int64) Record {
	return Record{
		Name:      d.Name,
		Address:   d.Address,
		Location:  d.Location,
		Menu:      CleanMenu(d.Menu),
		Notes:     d.Notes,
		Status:    StatusPending,
		CreatedAt: createdAt,
		CreatedBy: d.CreatedBy,
		Image:     d.Image,
		Portion:   d.Portion,
		IftarTime: d.IftarTime,
	}
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status     *Status
	ThumbsUp   *int
	ThumbsDown *int
}

// Fields renders the patch as the flat field map sent to the backend.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.ThumbsUp != nil {
		fields["thumbsUp"] = *p.ThumbsUp
	}
	if p.ThumbsDown != nil {
		fields["thumbsDown"] = *p.ThumbsDown
	}
	return fields
}

// Apply merges the patch into r.
func (p Patch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ThumbsUp != nil {
		r.ThumbsUp = *p.ThumbsUp
	}
	if p.ThumbsDown != nil {
		r.ThumbsDown = *p.ThumbsDown
	}
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.ThumbsUp == nil && p.ThumbsDown == nil
}
