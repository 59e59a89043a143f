package core

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Preview runs an import without writing anything. Existing records are read
// from the service's store, so duplicates against stored data are reported
// exactly as a real run would report them. Storage constraint failures cannot
// be predicted and never appear in a preview.
func (s *Service) Preview(ctx context.Context, kind Kind, fileName string, r io.Reader) (*ImportResult, error) {
	def, err := s.Definition(kind)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	return s.run(ctx, readOnlyStore{s.store}, uuid.New().String(), def, fileName, r, nil)
}

// readOnlyStore reads through to the wrapped store and discards inserts.
type readOnlyStore struct {
	Store
}

func (readOnlyStore) InsertOne(ctx context.Context, _ Kind, _ Record) error {
	return ctx.Err()
}
