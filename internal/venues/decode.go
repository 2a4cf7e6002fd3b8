package venues

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var ErrInvalidDocument = errors.New("invalid venue document")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints on records and drafts.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Decode turns a raw backend document into a Record. Documents whose shape
// does not match the schema are rejected rather than partially trusted.
// id overrides any "id" field carried in the body when non-empty.
func Decode(id string, raw []byte) (Record, error) {
	if !gjson.ValidBytes(raw) {
		return Record{}, fmt.Errorf("%w: malformed json", ErrInvalidDocument)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Record{}, fmt.Errorf("%w: document is not an object", ErrInvalidDocument)
	}

	d := decoder{doc: doc}
	r := Record{
		ID:         d.str("id", false),
		Name:       d.str("name", true),
		Address:    d.str("address", false),
		Location:   Location{Lat: d.num("location.lat", true), Lng: d.num("location.lng", true)},
		Menu:       d.strs("menu"),
		Notes:      d.str("notes", false),
		Status:     Status(d.str("status", true)),
		CreatedAt:  d.integer("createdAt", true),
		CreatedBy:  d.str("createdBy", false),
		Image:      d.str("image", false),
		Portion:    d.loose("portion"),
		IftarTime:  d.str("iftarTime", false),
		ThumbsUp:   int(d.integer("thumbsUp", false)),
		ThumbsDown: int(d.integer("thumbsDown", false)),
	}
	if id != "" {
		r.ID = id
	}
	if d.err != nil {
		return Record{}, d.err
	}

	if err := Validate(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// decoder records the first type mismatch and ignores later ones.
type decoder struct {
	doc gjson.Result
	err error
}

func (d *decoder) fail(path, want string, got gjson.Result) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s must be %s, got %s", ErrInvalidDocument, path, want, got.Type)
	}
}

func (d *decoder) field(path string, required bool) (gjson.Result, bool) {
	v := d.doc.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		if required && d.err == nil {
			d.err = fmt.Errorf("%w: %s is required", ErrInvalidDocument, path)
		}
		return v, false
	}
	return v, true
}

func (d *decoder) str(path string, required bool) string {
	v, ok := d.field(path, required)
	if !ok {
		return ""
	}
	if v.Type != gjson.String {
		d.fail(path, "a string", v)
		return ""
	}
	return v.Str
}

// loose accepts a string or a number, for fields older clients wrote as either.
func (d *decoder) loose(path string) string {
	v, ok := d.field(path, false)
	if !ok {
		return ""
	}
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	d.fail(path, "a string or number", v)
	return ""
}

func (d *decoder) num(path string, required bool) float64 {
	v, ok := d.field(path, required)
	if !ok {
		return 0
	}
	if v.Type != gjson.Number {
		d.fail(path, "a number", v)
		return 0
	}
	return v.Num
}

func (d *decoder) integer(path string, required bool) int64 {
	n := d.num(path, required)
	if n != math.Trunc(n) {
		d.fail(path, "an integer", d.doc.Get(path))
		return 0
	}
	return int64(n)
}

func (d *decoder) strs(path string) []string {
	v, ok := d.field(path, false)
	if !ok {
		return []string{}
	}
	if !v.IsArray() {
		d.fail(path, "an array", v)
		return nil
	}
	items := v.Array()
	out := make([]string, 0, len(items))
	for i, item := range items {
		if item.Type != gjson.String {
			d.fail(fmt.Sprintf("%s.%d", path, i), "a string", item)
			return nil
		}
		out = append(out, item.Str)
	}
	return out
}
