package venues

import "github.com/jinzhu/copier"

// Clone returns a deep copy of r that shares no slices with it.
func Clone(r Record) Record {
	var out Record
	if err := copier.CopyWithOption(&out, &r, copier.Option{DeepCopy: true}); err != nil {
		panic("could not copy venue record: " + err.Error())
	}
	if out.Menu == nil && r.Menu != nil {
		out.Menu = []string{}
	}
	return out
}

func CloneAll(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = Clone(r)
	}
	return out
}
