package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/models"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/logger"
)

const (
	storageAttempts = 3
	storageBackoff  = 50 * time.Millisecond
)

// Store is the only component allowed to persist a visit mutation. Races
// between concurrent transitions on the same visit are resolved here by a
// by-value compare-and-swap on the status column.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore constructs a visit store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("visit store: db is required")
	}
	return &Store{db: db, log: logger.WithModule("visits.store")}, nil
}

// Create persists a new visit record. Callers assign the session token; a
// uniqueness violation on it is reported via IsTokenCollision so the issuer
// can retry with a fresh token.
func (s *Store) Create(ctx context.Context, visit *models.Visit) error {
	if visit == nil {
		return errors.New("visit store: visit is required")
	}
	if err := s.db.WithContext(ctx).Create(visit).Error; err != nil {
		return fmt.Errorf("visit store: create visit: %w", err)
	}
	return nil
}

// LoadByID returns the visit with its host preloaded, or NotFound.
func (s *Store) LoadByID(ctx context.Context, id string) (*models.Visit, error) {
	return s.load(ctx, "id = ?", strings.TrimSpace(id))
}

// LoadByToken resolves a scanned session token to its visit, or NotFound.
// The token is the sole external identity of a visit and stays resolvable
// for the visit's whole lifetime, including after checkout.
func (s *Store) LoadByToken(ctx context.Context, token string) (*models.Visit, error) {
	return s.load(ctx, "session_token = ?", strings.TrimSpace(token))
}

func (s *Store) load(ctx context.Context, query, arg string) (*models.Visit, error) {
	if arg == "" {
		return nil, apperrors.ErrNotFound
	}

	var visit models.Visit
	err := s.db.WithContext(ctx).Preload("Host").Where(query, arg).First(&visit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("visit store: load visit: %w", err)
	}
	return &visit, nil
}

// LoadHost returns the referenced host record, or NotFound.
func (s *Store) LoadHost(ctx context.Context, id string) (*models.Host, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ErrNotFound
	}

	var host models.Host
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&host).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("visit store: load host: %w", err)
	}
	return &host, nil
}

// ApplyTransition writes the new status and transition timestamp only if the
// stored status still equals expected at the moment of writing. When another
// actor won the race in between, the caller receives ErrStateConflict and the
// winner's write is left untouched.
//
// Unexpected storage failures are retried here with a short backoff; business
// outcomes (conflict, not found) are never retried.
func (s *Store) ApplyTransition(ctx context.Context, id string, expected, next models.VisitStatus, stampField string, stampValue time.Time) (*models.Visit, error) {
	values := map[string]any{
		"status":     next,
		"updated_at": stampValue,
	}
	if stampField != "" {
		values[stampField] = stampValue
	}

	var res *gorm.DB
	for attempt := 1; ; attempt++ {
		res = s.db.WithContext(ctx).
			Model(&models.Visit{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(values)
		if res.Error == nil {
			break
		}
		if attempt >= storageAttempts {
			return nil, fmt.Errorf("visit store: apply transition: %w", res.Error)
		}
		s.log.Warn("transition write failed, retrying",
			zap.String("visit_id", id),
			zap.Int("attempt", attempt),
			zap.Error(res.Error),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(storageBackoff * time.Duration(attempt)):
		}
	}

	if res.RowsAffected == 0 {
		// Distinguish a vanished record from a lost race.
		if _, err := s.load(ctx, "id = ?", id); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrStateConflict
	}

	return s.LoadByID(ctx, id)
}

// SearchInput filters the reception visit list.
type SearchInput struct {
	Status models.VisitStatus
	HostID string
	Query  string // matches visitor name or company
	Limit  int
	Offset int
}

// Search lists visits most recent first for reception and host dashboards.
func (s *Store) Search(ctx context.Context, input SearchInput) ([]models.Visit, int64, error) {
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	tx := s.db.WithContext(ctx).Model(&models.Visit{})
	if input.Status != "" {
		tx = tx.Where("status = ?", input.Status)
	}
	if input.HostID != "" {
		tx = tx.Where("host_id = ?", input.HostID)
	}
	if q := strings.TrimSpace(input.Query); q != "" {
		like := "%" + q + "%"
		tx = tx.Where("visitor_name LIKE ? OR visitor_company LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("visit store: count visits: %w", err)
	}

	var rows []models.Visit
	if err := tx.Preload("Host").
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("visit store: list visits: %w", err)
	}

	return rows, total, nil
}

// IsTokenCollision detects database uniqueness violations across vendors,
// used by the engine to retry token issuance.
func IsTokenCollision(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
