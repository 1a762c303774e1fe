package ports

import (
	"context"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// MeasurementSource is the analytical collaborator: one call returning a
// scalar (or small structured) result. The controller does not know how
// the value was derived; spectral acquisition and signal processing live
// entirely behind this interface.
type MeasurementSource interface {
	// Sample blocks until a measurement is available or the context ends.
	// A non-nil error means the instrument failed; the controller treats
	// that as a hardware error, never as "keep waiting".
	Sample(ctx context.Context) (domain.Measurement, error)
}

// MeasurementFunc adapts a plain function to a MeasurementSource.
type MeasurementFunc func(ctx context.Context) (domain.Measurement, error)

// Sample implements MeasurementSource.
func (f MeasurementFunc) Sample(ctx context.Context) (domain.Measurement, error) {
	return f(ctx)
}
