package infrastructure

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
)

// GeometryWriter serializes job results as JSON. Rendering the geometry
// to SVG or a canvas is a downstream concern.
type GeometryWriter struct {
	logger *zap.Logger
}

func NewGeometryWriter(logger *zap.Logger) *GeometryWriter {
	return &GeometryWriter{logger: logger}
}

// WriteJSON writes the result payload to filename.
func (w *GeometryWriter) WriteJSON(filename string, result *domain.JobResult) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	w.logger.Info("geometry written", zap.String("file", filename))
	return nil
}
