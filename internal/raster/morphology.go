package raster

// diskOffsets returns the (dc, dr) offsets of a disk structuring element
// of the given radius, matching the usual "x²+y² ≤ r²" footprint.
func diskOffsets(radius int) [][2]int {
	if radius < 1 {
		return [][2]int{{0, 0}}
	}
	var offs [][2]int
	r2 := radius * radius
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			if dc*dc+dr*dr <= r2 {
				offs = append(offs, [2]int{dc, dr})
			}
		}
	}
	return offs
}

// squareOffsets returns the offsets of a size×size square structuring
// element centered on the origin (size is forced odd).
func squareOffsets(size int) [][2]int {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	half := size / 2
	var offs [][2]int
	for dr := -half; dr <= half; dr++ {
		for dc := -half; dc <= half; dc++ {
			offs = append(offs, [2]int{dc, dr})
		}
	}
	return offs
}

func dilateWith(m *Mask, offs [][2]int) *Mask {
	out := NewMask(m.Width, m.Height)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			if !m.Data[row*m.Width+col] {
				continue
			}
			for _, o := range offs {
				out.Set(col+o[0], row+o[1], true)
			}
		}
	}
	return out
}

func erodeWith(m *Mask, offs [][2]int) *Mask {
	out := NewMask(m.Width, m.Height)
	for row := 0; row < m.Height; row++ {
	cell:
		for col := 0; col < m.Width; col++ {
			if !m.Data[row*m.Width+col] {
				continue
			}
			for _, o := range offs {
				nc, nr := col+o[0], row+o[1]
				// Cells past the grid edge count as true so regions
				// running off the tile are not eroded at the border.
				if nc < 0 || nr < 0 || nc >= m.Width || nr >= m.Height {
					continue
				}
				if !m.Data[nr*m.Width+nc] {
					continue cell
				}
			}
			out.Data[row*m.Width+col] = true
		}
	}
	return out
}

// Dilate returns the binary dilation of m by a disk of the given radius.
func Dilate(m *Mask, radius int) *Mask {
	return dilateWith(m, diskOffsets(radius))
}

// DilateSquare returns the binary dilation of m by a size×size square.
func DilateSquare(m *Mask, size int) *Mask {
	return dilateWith(m, squareOffsets(size))
}

// Erode returns the binary erosion of m by a disk of the given radius.
func Erode(m *Mask, radius int) *Mask {
	return erodeWith(m, diskOffsets(radius))
}

// Close returns the morphological closing (dilation then erosion) of m by
// a disk of the given radius. Closing fills gaps narrower than the disk,
// which the coastal composer uses to exclude narrow channels.
func Close(m *Mask, radius int) *Mask {
	offs := diskOffsets(radius)
	return erodeWith(dilateWith(m, offs), offs)
}

// Open returns the morphological opening (erosion then dilation) of m by
// a disk of the given radius.
func Open(m *Mask, radius int) *Mask {
	offs := diskOffsets(radius)
	return dilateWith(erodeWith(m, offs), offs)
}
