// Package morphology turns a weighted thickness surface into a clean binary
// mask: threshold, hole filling, closing, opening and a component-size sieve.
//
// All operators use the 4-neighbour cross as structuring element and return
// freshly allocated masks.
package morphology

import (
	"image"
	"math"

	"ashfall/internal/models"
)

var cross = [4]image.Point{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}

// Threshold marks every finite node strictly above t.
func Threshold(f *models.ScalarField, t float64) *models.BinaryMask {
	m := models.NewBinaryMask(f.Grid.NX, f.Grid.NY)
	for k, v := range f.Values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v > t {
			m.Bits[k] = true
		}
	}
	return m
}

// Dilate sets every pixel with a set cardinal neighbour, iterations times.
func Dilate(m *models.BinaryMask, iterations int) *models.BinaryMask {
	cur := m.Clone()
	for it := 0; it < iterations; it++ {
		next := cur.Clone()
		for row := 0; row < cur.Height; row++ {
			for col := 0; col < cur.Width; col++ {
				if cur.At(col, row) {
					continue
				}
				for _, d := range cross {
					if cur.At(col+d.X, row+d.Y) {
						next.Set(col, row, true)
						break
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// Erode keeps a pixel only when all of its cardinal neighbours are set.
// Pixels outside the mask count as unset.
func Erode(m *models.BinaryMask, iterations int) *models.BinaryMask {
	cur := m.Clone()
	for it := 0; it < iterations; it++ {
		next := cur.Clone()
		for row := 0; row < cur.Height; row++ {
			for col := 0; col < cur.Width; col++ {
				if !cur.At(col, row) {
					continue
				}
				for _, d := range cross {
					if !cur.At(col+d.X, row+d.Y) {
						next.Set(col, row, false)
						break
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// Close dilates then erodes. The work happens on a canvas padded by
// iterations+1 pixels so shapes touching the border close as if the plane
// continued.
func Close(m *models.BinaryMask, iterations int) *models.BinaryMask {
	if iterations <= 0 {
		return m.Clone()
	}
	pad := iterations + 1
	big := models.NewBinaryMask(m.Width+2*pad, m.Height+2*pad)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			if m.At(col, row) {
				big.Set(col+pad, row+pad, true)
			}
		}
	}
	big = Erode(Dilate(big, iterations), iterations)

	out := models.NewBinaryMask(m.Width, m.Height)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			out.Set(col, row, big.At(col+pad, row+pad))
		}
	}
	return out
}

// Open erodes then dilates.
func Open(m *models.BinaryMask, iterations int) *models.BinaryMask {
	if iterations <= 0 {
		return m.Clone()
	}
	return Dilate(Erode(m, iterations), iterations)
}

// FillHoles sets every unset pixel that is not 4-connected to the border
// through unset pixels.
func FillHoles(m *models.BinaryMask) *models.BinaryMask {
	w, h := m.Width, m.Height
	outside := make([]bool, w*h)
	var stack []image.Point
	push := func(col, row int) {
		if col < 0 || row < 0 || col >= w || row >= h {
			return
		}
		idx := row*w + col
		if outside[idx] || m.Bits[idx] {
			return
		}
		outside[idx] = true
		stack = append(stack, image.Point{X: col, Y: row})
	}

	for col := 0; col < w; col++ {
		push(col, 0)
		push(col, h-1)
	}
	for row := 0; row < h; row++ {
		push(0, row)
		push(w-1, row)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range cross {
			push(p.X+d.X, p.Y+d.Y)
		}
	}

	out := models.NewBinaryMask(w, h)
	for i := range out.Bits {
		out.Bits[i] = !outside[i]
	}
	return out
}

// Label assigns 4-connected component ids starting at 1; 0 is background.
// sizes[id] is the pixel count of component id (sizes[0] is unused).
func Label(m *models.BinaryMask) (labels []int, sizes []int) {
	w, h := m.Width, m.Height
	labels = make([]int, w*h)
	sizes = []int{0}

	var stack []image.Point
	for start := range m.Bits {
		if !m.Bits[start] || labels[start] != 0 {
			continue
		}
		id := len(sizes)
		sizes = append(sizes, 0)
		labels[start] = id
		stack = append(stack[:0], image.Point{X: start % w, Y: start / w})

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			sizes[id]++
			for _, d := range cross {
				col, row := p.X+d.X, p.Y+d.Y
				if !m.At(col, row) {
					continue
				}
				idx := row*w + col
				if labels[idx] != 0 {
					continue
				}
				labels[idx] = id
				stack = append(stack, image.Point{X: col, Y: row})
			}
		}
	}
	return labels, sizes
}

// Sieve drops 4-connected components with fewer than minPixels pixels.
func Sieve(m *models.BinaryMask, minPixels int) *models.BinaryMask {
	if minPixels <= 1 {
		return m.Clone()
	}
	labels, sizes := Label(m)
	out := models.NewBinaryMask(m.Width, m.Height)
	for i, id := range labels {
		if id != 0 && sizes[id] >= minPixels {
			out.Bits[i] = true
		}
	}
	return out
}
