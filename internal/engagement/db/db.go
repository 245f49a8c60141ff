// Package db implements the engagement store on top of GORM. It owns the
// relational schema for companies, users, requests, projects and reviews and
// exposes the transactional surface the workflow layer builds on.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate creates or updates the schema for all engagement entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.CompanyUser{},
		&models.Service{},
		&models.Product{},
		&models.ProductClient{},
		&models.Project{},
		&models.ProjectRequest{},
		&models.RequestService{},
		&models.ProjectCompany{},
		&models.ServiceProject{},
		&models.Review{},
	)
}

// NewWithDB wraps an already-open GORM handle. Used by tests.
func NewWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTransaction runs fn against a transaction-scoped repository. Any error
// from fn rolls back every write made through it.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Companies

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	result := r.db.WithContext(ctx).Create(company)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	result := r.db.WithContext(ctx).First(&company, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrCompanyNotFound
		}
		return nil, result.Error
	}
	return &company, nil
}

func (r *Repository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company
	result := r.db.WithContext(ctx).First(&company, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrCompanyNotFound
		}
		return nil, result.Error
	}
	return &company, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", update.ID).
		Updates(update)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrCompanyNotFound
	}
	return nil
}

func (r *Repository) CompanyExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("name = ?", name).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// SetCompanyVerified flips the verification flag. The caller guards against
// re-verification; this is a plain column write.
func (r *Repository) SetCompanyVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", id).
		Update("verified", verified)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrCompanyNotFound
	}
	return nil
}

// SetCompanyRating stores the recomputed aggregate rating.
func (r *Repository) SetCompanyRating(ctx context.Context, id uuid.UUID, rating float64) error {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", id).
		Update("rating", rating)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrCompanyNotFound
	}
	return nil
}

// Users and memberships

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

func (r *Repository) AddCompanyUser(ctx context.Context, membership *models.CompanyUser) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// ListCompanyMembers returns the users affiliated with a company, oldest
// membership first. Join-timestamp ascending is the stable tie-break for
// "first member" lookups.
func (r *Repository) ListCompanyMembers(ctx context.Context, companyID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN company_users cu ON cu.user_id = users.id").
		Where("cu.company_id = ?", companyID).
		Order("cu.added_at ASC").
		Find(&users).Error
	return users, err
}

// ListUserCompanyIDs returns the ids of every company the user belongs to.
func (r *Repository) ListUserCompanyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.CompanyUser{}).
		Where("user_id = ?", userID).
		Pluck("company_id", &ids).Error
	return ids, err
}

// GetCompanyRoot returns the company's root user, if one exists.
func (r *Repository) GetCompanyRoot(ctx context.Context, companyID uuid.UUID) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN company_users cu ON cu.user_id = users.id").
		Where("cu.company_id = ? AND users.role = ?", companyID, models.RoleRoot).
		Order("cu.added_at ASC").
		First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ApplyRoleChanges applies explicit role transition commands. Satisfies the
// role directory boundary the workflow layer emits promotions through.
func (r *Repository) ApplyRoleChanges(ctx context.Context, changes []models.RoleChange) error {
	for _, change := range changes {
		result := r.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", change.UserID).
			Update("role", change.To)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrUserNotFound
		}
	}
	return nil
}

// Services and products

func (r *Repository) CreateService(ctx context.Context, service *models.Service) error {
	return r.db.WithContext(ctx).Create(service).Error
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// ListCompanyProductNames returns the names of the company's products.
func (r *Repository) ListCompanyProductNames(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("company_id = ?", companyID).
		Pluck("name", &names).Error
	return names, err
}

// ListProviderServiceNames returns the distinct names of services delivered
// across the company's projects as a provider. Alias rows where the provider
// side is a placeholder are excluded.
func (r *Repository) ListProviderServiceNames(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Service{}).
		Joins("JOIN service_projects sp ON sp.service_id = services.id").
		Joins("JOIN project_companies pc ON pc.project_id = sp.project_id").
		Where("pc.provider_company_id = ? AND pc.is_client <> ?", companyID, models.OnlyClientRegistered).
		Distinct().
		Pluck("services.name", &names).Error
	return names, err
}

// Project requests

// CreateProjectRequest persists a request together with its requested
// service mappings.
func (r *Repository) CreateProjectRequest(ctx context.Context, request *models.ProjectRequest, serviceIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return err
		}
		for _, serviceID := range serviceIDs {
			rs := models.RequestService{RequestID: request.ID, ServiceID: serviceID}
			if err := tx.Create(&rs).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetProjectRequest(ctx context.Context, id uuid.UUID) (*models.ProjectRequest, error) {
	var request models.ProjectRequest
	result := r.db.WithContext(ctx).First(&request, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrRequestNotFound
		}
		return nil, result.Error
	}
	return &request, nil
}

func (r *Repository) UpdateProjectRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus, decidedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ProjectRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "decided_at": decidedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrRequestNotFound
	}
	return nil
}

func (r *Repository) ListRequestServiceIDs(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.RequestService{}).
		Where("request_id = ?", requestID).
		Pluck("service_id", &ids).Error
	return ids, err
}

// Projects

func (r *Repository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	result := r.db.WithContext(ctx).First(&project, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// GetProjectForUpdate reads the project row under a pessimistic lock so the
// read-modify-write of the completion flags serializes per project. SQLite
// has no FOR UPDATE syntax; its single-writer model provides the same
// serialization inside a transaction.
func (r *Repository) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	tx := r.db.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var project models.Project
	result := tx.First(&project, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// SaveProject writes back every column of the project row.
func (r *Repository) SaveProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *Repository) CreateProjectCompany(ctx context.Context, pc *models.ProjectCompany) error {
	return r.db.WithContext(ctx).Create(pc).Error
}

func (r *Repository) GetProjectCompany(ctx context.Context, projectID uuid.UUID) (*models.ProjectCompany, error) {
	var pc models.ProjectCompany
	result := r.db.WithContext(ctx).First(&pc, "project_id = ?", projectID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &pc, nil
}

// AddServiceProjects copies service mappings onto a materialized project.
func (r *Repository) AddServiceProjects(ctx context.Context, projectID uuid.UUID, serviceIDs []uuid.UUID) error {
	for _, serviceID := range serviceIDs {
		sp := models.ServiceProject{ProjectID: projectID, ServiceID: serviceID}
		if err := r.db.WithContext(ctx).Create(&sp).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListProviderEngagements returns the engagement rows where the company is
// genuinely the provider. Rows with a placeholder provider alias the
// provider key to the client, so they are excluded.
func (r *Repository) ListProviderEngagements(ctx context.Context, companyID uuid.UUID) ([]models.ProjectCompany, error) {
	var pcs []models.ProjectCompany
	err := r.db.WithContext(ctx).
		Where("provider_company_id = ? AND is_client <> ?", companyID, models.OnlyClientRegistered).
		Find(&pcs).Error
	return pcs, err
}

// Reviews

func (r *Repository) CreateReview(ctx context.Context, review *models.Review) error {
	result := r.db.WithContext(ctx).Create(review)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateReview
		}
		return result.Error
	}
	return nil
}

func (r *Repository) ReviewExists(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// ListProviderRatings returns every rating posted against the company's
// projects as a provider.
func (r *Repository) ListProviderRatings(ctx context.Context, companyID uuid.UUID) ([]int, error) {
	var ratings []int
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Joins("JOIN project_companies pc ON pc.project_id = reviews.project_id").
		Where("pc.provider_company_id = ? AND pc.is_client <> ?", companyID, models.OnlyClientRegistered).
		Pluck("reviews.rating", &ratings).Error
	return ratings, err
}

// ListProviderReviews returns the review rows for the company's provider
// projects, newest first.
func (r *Repository) ListProviderReviews(ctx context.Context, companyID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Joins("JOIN project_companies pc ON pc.project_id = reviews.project_id").
		Where("pc.provider_company_id = ? AND pc.is_client <> ?", companyID, models.OnlyClientRegistered).
		Order("reviews.created_at DESC").
		Find(&reviews).Error
	return reviews, err
}
