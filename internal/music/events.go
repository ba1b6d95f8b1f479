package music

import (
	"context"
	"errors"

	"github.com/snappy-loop/musicgen/internal/models"
)

// Publishers fans one event out to every sink. All sinks are attempted; their
// errors are joined.
type Publishers []EventPublisher

func (p Publishers) PublishGeneration(ctx context.Context, event *models.GenerationEvent) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishGeneration(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
