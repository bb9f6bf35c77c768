package state

import (
	"context"
	"errors"
	"time"

	"github.com/ETAnderson/celltrack/internal/domain"
)

var ErrNotFound = errors.New("not found")

// StatusRecord is the persisted status row of one test at one
// site/phase/cell slot.
type StatusRecord struct {
	UniqueTestID string
	Site         string
	Phase        string
	CellType     string
	Cell         string
	TestID       string

	Status       domain.Status
	Note         string
	Volume       string
	Date         string
	StartTime    string
	EndTime      string
	Availability string

	UpdatedBy string
	UpdatedAt time.Time
}

// SlotKey identifies the site/phase/cell slot a status row belongs to.
func (r StatusRecord) SlotKey() string {
	return r.Site + "\x00" + r.Phase + "\x00" + r.CellType + "\x00" + r.Cell + "\x00" + r.TestID
}

type IdempotencyRecord struct {
	StatusCode int
	BodyJSON   []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

type Store interface {
	// Sites
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetSite(ctx context.Context, name string) (domain.Site, bool, error)
	UpsertSite(ctx context.Context, site domain.Site) error
	DeleteSite(ctx context.Context, name string) error

	// Cell types
	ListCellTypes(ctx context.Context) ([]domain.CellType, error)
	UpsertCellType(ctx context.Context, ct domain.CellType) error
	DeleteCellType(ctx context.Context, name string) error

	// Cells configured at a site
	ListSiteCells(ctx context.Context, site string) ([]domain.SiteCell, error)
	AddSiteCell(ctx context.Context, sc domain.SiteCell) error
	DeleteSiteCell(ctx context.Context, sc domain.SiteCell) error

	// Test case catalog
	ListTestCases(ctx context.Context) ([]domain.TestCase, error)
	GetTestCase(ctx context.Context, testID string) (domain.TestCase, bool, error)
	UpsertTestCase(ctx context.Context, tc domain.TestCase) error
	DeleteTestCase(ctx context.Context, testID string) error

	// Status rows
	ListStatuses(ctx context.Context, site string, phase string) ([]StatusRecord, error)
	GetStatus(ctx context.Context, uniqueTestID string) (StatusRecord, bool, error)
	InsertStatuses(ctx context.Context, recs []StatusRecord) error
	UpdateStatus(ctx context.Context, rec StatusRecord) error

	Close() error
}

// IdempotencyCache stores replayable responses for write requests.
type IdempotencyCache interface {
	GetIdempotency(ctx context.Context, actor string, endpoint string, idemKeyHash string) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, actor string, endpoint string, idemKeyHash string, rec IdempotencyRecord) error
}
