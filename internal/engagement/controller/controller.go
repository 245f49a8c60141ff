// Package controller implements the engagement workflow: company lifecycle,
// project requests between companies, dual-sided completion, reviews with
// rating recomputation, and the change events that keep the external index
// in sync.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/bizlink/internal/engagement/db"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/events"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/gartstein/bizlink/internal/engagement/notify"
	"github.com/gartstein/bizlink/internal/engagement/resolver"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventProducer publishes company snapshots to the broker. The returned
// channel carries the publish outcome; callers decide whether to await it.
type EventProducer interface {
	Produce(eventType events.EventType, company *events.CompanySnapshot) <-chan error
}

// RoleDirectory applies explicit role transition commands. Keeps the
// identity-provider integration a pluggable boundary.
type RoleDirectory interface {
	ApplyRoleChanges(ctx context.Context, changes []models.RoleChange) error
}

// Repository defines the storage surface for the engagement workflow.
type Repository interface {
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error
	CompanyExistsByName(ctx context.Context, name string) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListCompanyMembers(ctx context.Context, companyID uuid.UUID) ([]models.User, error)
	ListUserCompanyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	GetCompanyRoot(ctx context.Context, companyID uuid.UUID) (*models.User, error)
	CreateProjectRequest(ctx context.Context, request *models.ProjectRequest, serviceIDs []uuid.UUID) error
	GetProjectRequest(ctx context.Context, id uuid.UUID) (*models.ProjectRequest, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectCompany(ctx context.Context, projectID uuid.UUID) (*models.ProjectCompany, error)
	ListProviderEngagements(ctx context.Context, companyID uuid.UUID) ([]models.ProjectCompany, error)
	ListProviderServiceNames(ctx context.Context, companyID uuid.UUID) ([]string, error)
	ListCompanyProductNames(ctx context.Context, companyID uuid.UUID) ([]string, error)
	ListProviderReviews(ctx context.Context, companyID uuid.UUID) ([]models.Review, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// EngagementService provides the workflow operations, orchestrating the
// store, the role directory, the notification sink and event production.
type EngagementService struct {
	repo     Repository
	roles    RoleDirectory
	producer EventProducer
	notifier notify.Sink
	logger   *zap.Logger
}

// NewEngagementService constructs an EngagementService.
func NewEngagementService(repo Repository, roles RoleDirectory, producer EventProducer, notifier notify.Sink, logger *zap.Logger) *EngagementService {
	return &EngagementService{
		repo:     repo,
		roles:    roles,
		producer: producer,
		notifier: notifier,
		logger:   logger.Named("engagement_service"),
	}
}

// CreateCompany registers a new, unverified company with the creating user
// as its first member, then fires a createCompany event.
func (s *EngagementService) CreateCompany(ctx context.Context, company *models.Company, creatorID uuid.UUID) (*models.Company, error) {
	if err := validateCompany(company); err != nil {
		return nil, err
	}

	exists, err := s.repo.CompanyExistsByName(ctx, company.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check name existence: %w", err)
	}
	if exists {
		return nil, e.ErrDuplicateName
	}

	if _, err := s.repo.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}

	company.ID = uuid.New()
	company.Verified = false
	company.Rating = 0
	err = s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		if err := txRepo.CreateCompany(ctx, company); err != nil {
			return err
		}
		return txRepo.AddCompanyUser(ctx, &models.CompanyUser{
			CompanyID: company.ID,
			UserID:    creatorID,
			AddedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	s.publishAsync(events.CompanyCreated, company.ID)
	return company, nil
}

// GetCompany retrieves a Company by ID, returning an error if not found.
func (s *EngagementService) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// UpdateCompany modifies the specified Company fields, then fetches the
// updated version for returning and event production.
func (s *EngagementService) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid company ID", e.ErrInvalidInput)
	}

	if err := s.repo.UpdateCompany(ctx, update); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	updated, err := s.repo.GetCompany(ctx, update.ID)
	if err != nil {
		return nil, err
	}

	s.publishAsync(events.CompanyModified, update.ID)
	return updated, nil
}

// VerifyCompany flips the verification flag exactly once and returns the
// role transition promoting the company's oldest member to root. The
// promotion is applied through the role directory, not mutated in place.
func (s *EngagementService) VerifyCompany(ctx context.Context, companyID uuid.UUID) ([]models.RoleChange, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.Verified {
		return nil, e.ErrCompanyAlreadyVerified
	}

	var changes []models.RoleChange
	err = s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		if err := txRepo.SetCompanyVerified(ctx, companyID, true); err != nil {
			return err
		}
		members, err := txRepo.ListCompanyMembers(ctx, companyID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		oldest := members[0]
		if oldest.Role != models.RoleRoot {
			changes = append(changes, models.RoleChange{
				UserID: oldest.ID,
				From:   oldest.Role,
				To:     models.RoleRoot,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify company: %w", err)
	}

	if len(changes) > 0 {
		if err := s.roles.ApplyRoleChanges(ctx, changes); err != nil {
			return changes, fmt.Errorf("failed to apply role changes: %w", err)
		}
	}

	s.publishAsync(events.CompanyModified, companyID)
	return changes, nil
}

// publishAsync fires a change event for the company without blocking the
// caller. A failed publish leaves the index stale; it is logged with the
// entity id and never affects committed state.
func (s *EngagementService) publishAsync(eventType events.EventType, companyID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		snapshot, err := s.buildSnapshot(ctx, companyID)
		if err != nil {
			s.logger.Error("Failed to build company snapshot for event",
				zap.Error(err),
				zap.String("company_id", companyID.String()),
			)
			return
		}
		if err := <-s.producer.Produce(eventType, snapshot); err != nil {
			s.logger.Error("Change event publish failed",
				zap.Error(err),
				zap.String("event_type", string(eventType)),
				zap.String("company_id", companyID.String()),
			)
		}
	}()
}

// buildSnapshot assembles the cycle-free projection of a company from store
// queries.
func (s *EngagementService) buildSnapshot(ctx context.Context, companyID uuid.UUID) (*events.CompanySnapshot, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	services, err := s.repo.ListProviderServiceNames(ctx, companyID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListCompanyProductNames(ctx, companyID)
	if err != nil {
		return nil, err
	}
	engagements, err := s.repo.ListProviderEngagements(ctx, companyID)
	if err != nil {
		return nil, err
	}

	res := resolver.New(s.repo)
	projects := make([]events.ProjectSnapshot, 0, len(engagements))
	for i := range engagements {
		pc := &engagements[i]
		project, err := s.repo.GetProject(ctx, pc.ProjectID)
		if err != nil {
			return nil, err
		}
		clientName, providerName, err := res.Names(ctx, pc)
		if err != nil {
			return nil, err
		}
		projects = append(projects, events.ProjectSnapshot{
			ID:             project.ID.String(),
			Title:          project.Title,
			ClientName:     clientName,
			ProviderName:   providerName,
			Completed:      project.IsCompleted,
			CompletionDate: project.CompletionDate,
		})
	}

	reviews, err := s.repo.ListProviderReviews(ctx, companyID)
	if err != nil {
		return nil, err
	}
	reviewSnapshots := make([]events.ReviewSnapshot, 0, len(reviews))
	for _, review := range reviews {
		reviewSnapshots = append(reviewSnapshots, events.ReviewSnapshot{
			ProjectID: review.ProjectID.String(),
			Rating:    review.Rating,
			Text:      review.Text,
		})
	}

	return &events.CompanySnapshot{
		ID:          company.ID.String(),
		Name:        company.Name,
		Description: company.Description,
		Verified:    company.Verified,
		Employees:   company.Employees,
		FoundedYear: company.FoundedYear,
		Rating:      company.Rating,
		Services:    services,
		Projects:    projects,
		Products:    products,
		Reviews:     reviewSnapshots,
	}, nil
}

func validateCompany(company *models.Company) error {
	if company.Name == "" || len(company.Name) > 120 {
		return fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}
	if len(company.Description) > 3000 {
		return fmt.Errorf("%w: description too long", e.ErrInvalidInput)
	}
	if company.Employees < 0 {
		return fmt.Errorf("%w: negative employee count", e.ErrInvalidInput)
	}
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
