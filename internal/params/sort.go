package params

import "fmt"

// SortHandler remembers the last sort key and orientation across calls so
// a PERMUTE request can be turned into a concrete direction. It belongs to
// one caller (a screen, a session) and is not safe for concurrent use.
type SortHandler struct {
	key         string
	orientation Orientation
}

// Key returns the remembered sort key.
func (h *SortHandler) Key() string { return h.key }

// Orientation returns the remembered orientation.
func (h *SortHandler) Orientation() Orientation {
	if h.orientation == "" {
		return Ascending
	}
	return h.orientation
}

// Resolve reads the sort key and orientation from p, replaces PERMUTE with
// the concrete direction and remembers the result. A PERMUTE on the same
// key flips the remembered orientation; on a new key it starts ascending.
func (h *SortHandler) Resolve(p *Params) error {
	key, err := sortKey(p)
	if err != nil {
		return err
	}
	o, err := p.Orientation()
	if err != nil {
		return err
	}
	if o == Permute {
		switch {
		case key == "":
			return fmt.Errorf("%w: PERMUTE without a sort key", ErrInvalid)
		case key == h.key && h.Orientation() == Ascending:
			o = Descending
		default:
			o = Ascending
		}
		p.Set(SortOrientation, o)
	}
	h.key, h.orientation = key, o
	return nil
}

func sortKey(p *Params) (string, error) {
	if key, err := p.String(SortKey); err != nil || key != "" {
		return key, err
	}
	fields, err := p.Strings(SortFields)
	if err != nil || len(fields) == 0 {
		return "", err
	}
	return fields[0], nil
}
