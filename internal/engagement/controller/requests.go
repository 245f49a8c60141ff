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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProposeRequest creates a pending project request from a client company to
// a provider company. Both counterparties must be registered and verified;
// no row is written otherwise. Provider staff are notified of the new
// request.
func (s *EngagementService) ProposeRequest(ctx context.Context, request *models.ProjectRequest, serviceIDs []uuid.UUID) (*models.ProjectRequest, error) {
	client, err := s.counterparty(ctx, request.ClientCompanyID)
	if err != nil {
		return nil, err
	}
	provider, err := s.counterparty(ctx, request.ProviderCompanyID)
	if err != nil {
		return nil, err
	}
	if !client.Verified || !provider.Verified {
		return nil, e.ErrUnverifiedCounterparty
	}
	if request.Title == "" {
		return nil, fmt.Errorf("%w: request title required", e.ErrInvalidInput)
	}

	request.ID = uuid.New()
	request.Status = models.RequestPending
	request.DecidedAt = nil
	if err := s.repo.CreateProjectRequest(ctx, request, serviceIDs); err != nil {
		return nil, fmt.Errorf("failed to create project request: %w", err)
	}

	s.notifyProviderStaff(ctx, request, client)
	return request, nil
}

// DecideRequest accepts or rejects a pending request. Terminal states are
// final: a repeat decision fails, it is never silently absorbed. Acceptance
// atomically materializes the project, its engagement row and the service
// mappings copied from the request, then fires a best-effort change event
// for the provider.
func (s *EngagementService) DecideRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*models.ProjectRequest, *models.Project, error) {
	request, err := s.repo.GetProjectRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request.Status != models.RequestPending {
		return nil, nil, e.ErrRequestAlreadyProcessed
	}

	now := time.Now().UTC()

	if !accept {
		err := s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
			current, err := txRepo.GetProjectRequest(ctx, requestID)
			if err != nil {
				return err
			}
			if current.Status != models.RequestPending {
				return e.ErrRequestAlreadyProcessed
			}
			return txRepo.UpdateProjectRequestStatus(ctx, requestID, models.RequestRejected, now)
		})
		if err != nil {
			return nil, nil, err
		}
		request.Status = models.RequestRejected
		request.DecidedAt = &now
		return request, nil, nil
	}

	var project *models.Project
	err = s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		current, err := txRepo.GetProjectRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != models.RequestPending {
			return e.ErrRequestAlreadyProcessed
		}
		if err := txRepo.UpdateProjectRequestStatus(ctx, requestID, models.RequestAccepted, now); err != nil {
			return err
		}

		project = &models.Project{
			ID:          uuid.New(),
			Title:       request.Title,
			Description: request.Description,
		}
		if err := txRepo.CreateProject(ctx, project); err != nil {
			return err
		}

		// Both sides were verified registered companies when the request
		// was proposed, so the engagement carries no placeholder.
		pc := &models.ProjectCompany{
			ProjectID:         project.ID,
			ClientCompanyID:   request.ClientCompanyID,
			ProviderCompanyID: request.ProviderCompanyID,
			IsClient:          models.BothRegistered,
		}
		if err := txRepo.CreateProjectCompany(ctx, pc); err != nil {
			return err
		}

		serviceIDs, err := txRepo.ListRequestServiceIDs(ctx, requestID)
		if err != nil {
			return err
		}
		return txRepo.AddServiceProjects(ctx, project.ID, serviceIDs)
	})
	if err != nil {
		return nil, nil, err
	}

	request.Status = models.RequestAccepted
	request.DecidedAt = &now

	// The provider's project list changed; the index catches up
	// best-effort, the accepted decision stands either way.
	s.publishAsync(events.CompanyModified, request.ProviderCompanyID)
	return request, project, nil
}

// counterparty resolves a company id for a request, translating a missing
// row into the counterparty error.
func (s *EngagementService) counterparty(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.ErrInvalidCounterparty
		}
		return nil, err
	}
	return company, nil
}

func (s *EngagementService) notifyProviderStaff(ctx context.Context, request *models.ProjectRequest, client *models.Company) {
	members, err := s.repo.ListCompanyMembers(ctx, request.ProviderCompanyID)
	if err != nil {
		s.logger.Error("Failed to list provider staff for notification",
			zap.Error(err),
			zap.String("request_id", request.ID.String()),
		)
		return
	}
	for _, member := range members {
		n := &notify.Notification{
			RecipientID: member.ID,
			Message:     fmt.Sprintf("%s requested a project: %s", client.Name, request.Title),
			Type:        "project_request",
			Link:        "/requests/" + request.ID.String(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("Failed to deliver request notification",
				zap.Error(err),
				zap.String("recipient_id", member.ID.String()),
			)
		}
	}
}
