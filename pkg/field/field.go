// Package field provides the scalar grid type shared by the solver and
// the extraction kernels, plus finite-difference gradients over it.
package field

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Unreached is the sentinel distance for cells the wavefront has not
// visited.
var Unreached = float32(math.Inf(1))

// Field is a width×height grid of 32-bit floats stored row-major in a
// flat slice.
type Field struct {
	Width  int
	Height int
	Data   []float32
}

// New returns a zero-filled field.
func New(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

func (f *Field) Index(x, y int) int { return y*f.Width + x }

func (f *Field) At(x, y int) float32 { return f.Data[y*f.Width+x] }

func (f *Field) Set(x, y int, v float32) { f.Data[y*f.Width+x] = v }

func (f *Field) InBounds(x, y int) bool {
	return x >= 0 && x < f.Width && y >= 0 && y < f.Height
}

// Fill sets every cell to v.
func (f *Field) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	c := New(f.Width, f.Height)
	copy(c.Data, f.Data)
	return c
}

// Bilinear samples the field at a continuous coordinate, clamping to
// the border.
func (f *Field) Bilinear(x, y float64) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float64(f.Width-1) {
		x = float64(f.Width - 1)
	}
	if y > float64(f.Height-1) {
		y = float64(f.Height - 1)
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= f.Width {
		x1 = f.Width - 1
	}
	if y1 >= f.Height {
		y1 = f.Height - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	v00 := float64(f.At(x0, y0))
	v10 := float64(f.At(x1, y0))
	v01 := float64(f.At(x0, y1))
	v11 := float64(f.At(x1, y1))
	top := v00 + (v10-v00)*fx
	bot := v01 + (v11-v01)*fx
	return top + (bot-top)*fy
}

// FiniteValues copies the finite cell values into a float64 slice,
// skipping Unreached sentinels.
func (f *Field) FiniteValues() []float64 {
	vals := make([]float64, 0, len(f.Data))
	for _, v := range f.Data {
		if !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v)) {
			vals = append(vals, float64(v))
		}
	}
	return vals
}

// Range reports the minimum and maximum finite values. ok is false when
// the field holds no finite values at all.
func (f *Field) Range() (min, max float64, ok bool) {
	vals := f.FiniteValues()
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}
