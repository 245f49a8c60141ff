package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/bizlink/internal/engagement/db"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/events"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/gartstein/bizlink/internal/engagement/resolver"
	"github.com/google/uuid"
)

// PortfolioItem is a self-declared historical project. Counterparties are
// given by name and resolved against the registered companies.
type PortfolioItem struct {
	Title          string
	Description    string
	ClientName     string
	ProviderName   string
	CompletionDate *time.Time
}

// ImportRecord is one company in an administrative bulk import, optionally
// with its historical portfolio.
type ImportRecord struct {
	Company   models.Company
	Portfolio []PortfolioItem
}

// ImportResult reports a committed bulk import. Warnings carry publish
// failures: the batch is durable, the index may lag behind it.
type ImportResult struct {
	CompanyIDs []uuid.UUID
	Warnings   []string
}

// ImportCompanies writes an administrative batch in a single transaction:
// every company is created pre-verified, portfolio items are resolved and
// materialized, and a mid-batch failure discards the whole batch. After the
// commit each company is published to the bulk topic; unlike single-entity
// mutations, a publish failure here is surfaced to the caller as a warning.
func (s *EngagementService) ImportCompanies(ctx context.Context, records []ImportRecord) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty import batch", e.ErrInvalidInput)
	}
	for i := range records {
		if err := validateCompany(&records[i].Company); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	result := &ImportResult{}
	err := s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		// Companies first, so portfolio records can resolve counterparties
		// created earlier in the same batch.
		for i := range records {
			company := &records[i].Company
			company.ID = uuid.New()
			company.Verified = true
			company.Rating = 0
			if err := txRepo.CreateCompany(ctx, company); err != nil {
				return fmt.Errorf("import %q: %w", company.Name, err)
			}
			result.CompanyIDs = append(result.CompanyIDs, company.ID)
		}

		res := resolver.New(txRepo)
		for i := range records {
			for _, item := range records[i].Portfolio {
				if _, err := createPortfolioProject(ctx, txRepo, res, item); err != nil {
					return fmt.Errorf("import %q portfolio: %w", records[i].Company.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range records {
		companyID := records[i].Company.ID
		snapshot, err := s.buildSnapshot(ctx, companyID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("company %s not indexed: %v", companyID, err))
			continue
		}
		if err := <-s.producer.Produce(events.CompaniesImported, snapshot); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("company %s not indexed: %v", companyID, err))
		}
	}
	return result, nil
}

// AddPortfolioProject materializes a single self-declared historical
// project for an existing company.
func (s *EngagementService) AddPortfolioProject(ctx context.Context, companyID uuid.UUID, item PortfolioItem) (*models.Project, error) {
	if _, err := s.repo.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}

	var project *models.Project
	err := s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		p, err := createPortfolioProject(ctx, txRepo, resolver.New(txRepo), item)
		if err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAsync(events.CompanyModified, companyID)
	return project, nil
}

func createPortfolioProject(ctx context.Context, repo *db.Repository, res *resolver.Resolver, item PortfolioItem) (*models.Project, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("%w: portfolio project title required", e.ErrInvalidInput)
	}
	assignment, err := res.Resolve(ctx, item.ClientName, item.ProviderName)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.New(),
		Title:       item.Title,
		Description: item.Description,
	}
	if item.CompletionDate != nil {
		project.ClientMarkedCompleted = true
		project.ProviderMarkedCompleted = true
		project.IsCompleted = true
		project.CompletionDate = item.CompletionDate
	}
	if err := repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	if err := repo.CreateProjectCompany(ctx, assignment.ProjectCompany(project.ID)); err != nil {
		return nil, err
	}
	return project, nil
}
