package field

import "math"

// Gradient holds the forward-difference gradient of a scalar field and
// its Euclidean magnitude. It carries no state beyond the three grids
// and is recomputed per extraction job, never cached across jobs.
type Gradient struct {
	GX  *Field
	GY  *Field
	Mag *Field
}

// ComputeGradient evaluates gx = f[x+1,y]-f[x,y] and the analogous gy
// at every cell, with zero at the right and bottom borders. Unreached
// cells contribute zero gradient.
func ComputeGradient(f *Field) *Gradient {
	g := &Gradient{
		GX:  New(f.Width, f.Height),
		GY:  New(f.Width, f.Height),
		Mag: New(f.Width, f.Height),
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			var gx, gy float64
			if x+1 < f.Width {
				gx = diff(f.At(x+1, y), f.At(x, y))
			}
			if y+1 < f.Height {
				gy = diff(f.At(x, y+1), f.At(x, y))
			}
			i := f.Index(x, y)
			g.GX.Data[i] = float32(gx)
			g.GY.Data[i] = float32(gy)
			g.Mag.Data[i] = float32(math.Hypot(gx, gy))
		}
	}
	return g
}

// diff returns b-a treating any non-finite operand as no information.
func diff(b, a float32) float64 {
	d := float64(b) - float64(a)
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return 0
	}
	return d
}
