package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/logger"
)

// Service owns the building directory: hosts that can receive visitors and
// the users allowed to call the gateways. Authentication happens upstream;
// this service only resolves identities to roles.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService constructs a directory service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("directory: db is required")
	}
	return &Service{db: db, log: logger.WithModule("directory")}, nil
}

// ResolveActor maps a user ID to the actor identity the lifecycle engine
// guards on. Unknown or deactivated users resolve to Unauthorized.
func (s *Service) ResolveActor(ctx context.Context, userID string) (visits.Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return visits.Actor{}, apperrors.ErrUnauthorized
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return visits.Actor{}, apperrors.ErrUnauthorized
		}
		return visits.Actor{}, fmt.Errorf("directory: resolve actor: %w", err)
	}
	if !user.Active {
		return visits.Actor{}, apperrors.ErrUnauthorized
	}

	actor := visits.Actor{ID: user.ID, Role: user.Role}
	if user.HostID != nil {
		actor.HostID = *user.HostID
	}
	return actor, nil
}

// CreateHostInput carries the fields for registering a host.
type CreateHostInput struct {
	Name    string `json:"name" binding:"required"`
	Company string `json:"company"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
}

// CreateHost registers a host contact, optionally creating a directory user
// bound to it so the host can approve their own visits.
func (s *Service) CreateHost(ctx context.Context, input CreateHostInput) (*models.Host, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("host name is required")
	}

	host := &models.Host{
		Name:    name,
		Company: strings.TrimSpace(input.Company),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Active:  true,
	}
	if err := s.db.WithContext(ctx).Create(host).Error; err != nil {
		return nil, fmt.Errorf("directory: create host: %w", err)
	}

	if host.Email != "" {
		if err := s.ensureHostUser(ctx, host); err != nil {
			// The host record stands; the login can be provisioned later.
			s.log.Warn("provision host user failed",
				zap.String("host_id", host.ID),
				zap.Error(err),
			)
		}
	}

	return host, nil
}

func (s *Service) ensureHostUser(ctx context.Context, host *models.Host) error {
	user := models.User{
		Name:   host.Name,
		Email:  host.Email,
		Role:   models.RoleHost,
		HostID: &host.ID,
		Active: true,
	}
	return s.db.WithContext(ctx).
		Where(models.User{Email: host.Email}).
		Attrs(user).
		FirstOrCreate(&models.User{}).Error
}

// GetHost returns one host by ID, or NotFound.
func (s *Service) GetHost(ctx context.Context, id string) (*models.Host, error) {
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
		return nil, fmt.Errorf("directory: get host: %w", err)
	}
	return &host, nil
}

// ListHostsInput filters the host directory listing.
type ListHostsInput struct {
	Query      string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ListHosts returns hosts ordered by name.
func (s *Service) ListHosts(ctx context.Context, input ListHostsInput) ([]models.Host, int64, error) {
	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	tx := s.db.WithContext(ctx).Model(&models.Host{})
	if input.ActiveOnly {
		tx = tx.Where("active = ?", true)
	}
	if q := strings.TrimSpace(input.Query); q != "" {
		like := "%" + q + "%"
		tx = tx.Where("name LIKE ? OR company LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("directory: count hosts: %w", err)
	}

	var rows []models.Host
	if err := tx.Order("name ASC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("directory: list hosts: %w", err)
	}
	return rows, total, nil
}

// SetHostActive toggles whether a host can receive new visits. Existing
// visits are untouched; only creation checks host activity.
func (s *Service) SetHostActive(ctx context.Context, id string, active bool) (*models.Host, error) {
	host, err := s.GetHost(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(host).Update("active", active).Error; err != nil {
		return nil, fmt.Errorf("directory: update host: %w", err)
	}
	host.Active = active
	return host, nil
}
