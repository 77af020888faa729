package raster

// Mask is a single-band boolean raster. The meaning of true depends on
// context (land, ocean, included, ...). Masks are value types in the
// pipeline: stages derive new masks rather than mutating published ones.
type Mask struct {
	Width, Height int
	Data          []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Data: make([]bool, width*height)}
}

// At reports the mask value at (col, row); out-of-bounds reads are false.
func (m *Mask) At(col, row int) bool {
	if col < 0 || row < 0 || col >= m.Width || row >= m.Height {
		return false
	}
	return m.Data[row*m.Width+col]
}

// Set writes the mask value at (col, row). Out-of-bounds writes are ignored.
func (m *Mask) Set(col, row int, v bool) {
	if col < 0 || row < 0 || col >= m.Width || row >= m.Height {
		return
	}
	m.Data[row*m.Width+col] = v
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Width, m.Height)
	copy(out.Data, m.Data)
	return out
}

// And returns the cellwise conjunction of m and other.
func (m *Mask) And(other *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for i := range m.Data {
		out.Data[i] = m.Data[i] && other.Data[i]
	}
	return out
}

// Or returns the cellwise disjunction of m and other.
func (m *Mask) Or(other *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for i := range m.Data {
		out.Data[i] = m.Data[i] || other.Data[i]
	}
	return out
}

// Not returns the cellwise negation of m.
func (m *Mask) Not() *Mask {
	out := NewMask(m.Width, m.Height)
	for i := range m.Data {
		out.Data[i] = !m.Data[i]
	}
	return out
}

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether the mask contains at least one true cell.
func (m *Mask) Any() bool {
	for _, v := range m.Data {
		if v {
			return true
		}
	}
	return false
}
