package infrastructure

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"eikotrace/pkg/field"
)

// RasterReader decodes raster images into grayscale fields at the CLI
// boundary. The engine itself never touches encoded images.
type RasterReader struct {
	logger *zap.Logger
}

func NewRasterReader(logger *zap.Logger) *RasterReader {
	return &RasterReader{logger: logger}
}

// ReadGrayscale decodes the image at path, resamples it so neither
// dimension exceeds maxDim, and converts to luminance in [0,1].
func (r *RasterReader) ReadGrayscale(path string, maxDim int) (*field.Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r.logger.Info("raster decoded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("width", w),
		zap.Int("height", h))

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		r.logger.Info("resampling to working resolution",
			zap.Int("width", w), zap.Int("height", h))
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)

	out := field.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, float32(gray.GrayAt(x, y).Y)/255)
		}
	}
	return out, nil
}
