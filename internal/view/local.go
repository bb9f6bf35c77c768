package view

import (
	"context"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

// LocalBackend drives a view straight from a tracking.Service, without
// an HTTP hop. Writes are attributed to Actor.
type LocalBackend struct {
	Service *tracking.Service
	Actor   string
}

func (b LocalBackend) GetBySite(ctx context.Context, site string, phase string) ([]domain.TestCaseRecord, error) {
	return b.Service.RecordsBySite(ctx, site, phase)
}

func (b LocalBackend) UpdateStatus(ctx context.Context, uniqueTestID string, upd domain.FieldUpdate) error {
	_, err := b.Service.UpdateStatus(ctx, uniqueTestID, upd, b.Actor)
	return err
}

func (b LocalBackend) UpdateNote(ctx context.Context, uniqueTestID string, note string) error {
	_, err := b.Service.UpdateNote(ctx, uniqueTestID, note, b.Actor)
	return err
}
