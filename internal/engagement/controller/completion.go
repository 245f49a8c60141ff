package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/bizlink/internal/engagement/db"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/gartstein/bizlink/internal/engagement/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type completionSide int

const (
	sideClient completionSide = iota
	sideProvider
)

// MarkProjectCompleted records one side's completion confirmation. The
// confirming side is derived from the user's company membership against the
// engagement row. The read-modify-write of both flags runs under a row lock
// so two near-simultaneous confirmations cannot both miss the finalization.
func (s *EngagementService) MarkProjectCompleted(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	companyIDs, err := s.repo.ListUserCompanyIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user membership: %w", err)
	}
	if len(companyIDs) == 0 {
		return nil, e.ErrNotAParticipant
	}

	var (
		project    *models.Project
		engagement *models.ProjectCompany
		finalized  bool
	)
	err = s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		p, err := txRepo.GetProjectForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		pc, err := txRepo.GetProjectCompany(ctx, projectID)
		if err != nil {
			return err
		}

		side, actsForBoth, err := completionSideFor(pc, companyIDs)
		if err != nil {
			return err
		}
		switch side {
		case sideClient:
			if p.ClientMarkedCompleted {
				return e.ErrAlreadyMarkedBySide
			}
			p.ClientMarkedCompleted = true
		case sideProvider:
			if p.ProviderMarkedCompleted {
				return e.ErrAlreadyMarkedBySide
			}
			p.ProviderMarkedCompleted = true
		}
		if actsForBoth {
			// The placeholder counterparty has no account; the known side
			// confirms on its behalf.
			p.ClientMarkedCompleted = true
			p.ProviderMarkedCompleted = true
		}

		if p.ClientMarkedCompleted && p.ProviderMarkedCompleted && !p.IsCompleted {
			now := time.Now().UTC()
			p.IsCompleted = true
			p.CompletionDate = &now
			finalized = true
		}

		if err := txRepo.SaveProject(ctx, p); err != nil {
			return err
		}
		project = p
		engagement = pc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finalized {
		s.notifyFinalized(ctx, project, engagement)
	}
	return project, nil
}

// completionSideFor determines which side of the engagement the user acts
// for. It branches on the discriminator before comparing foreign keys: with
// a placeholder counterparty one key is an alias of the other company and
// must never grant the placeholder side to a real user.
func completionSideFor(pc *models.ProjectCompany, companyIDs []uuid.UUID) (completionSide, bool, error) {
	switch pc.IsClient {
	case models.BothRegistered:
		if containsID(companyIDs, pc.ClientCompanyID) {
			return sideClient, false, nil
		}
		if containsID(companyIDs, pc.ProviderCompanyID) {
			return sideProvider, false, nil
		}
	case models.OnlyClientRegistered:
		if containsID(companyIDs, pc.ClientCompanyID) {
			return sideClient, true, nil
		}
	case models.OnlyProviderRegistered:
		if containsID(companyIDs, pc.ProviderCompanyID) {
			return sideProvider, true, nil
		}
	}
	return 0, false, e.ErrNotAParticipant
}

// notifyFinalized tells the client company's root user that the project
// completed. Skipped when the client side is a placeholder with no users.
func (s *EngagementService) notifyFinalized(ctx context.Context, project *models.Project, pc *models.ProjectCompany) {
	if pc.IsClient == models.OnlyProviderRegistered {
		return
	}
	root, err := s.repo.GetCompanyRoot(ctx, pc.ClientCompanyID)
	if err != nil {
		s.logger.Warn("No root user to notify about completion",
			zap.Error(err),
			zap.String("company_id", pc.ClientCompanyID.String()),
			zap.String("project_id", project.ID.String()),
		)
		return
	}
	n := &notify.Notification{
		RecipientID: root.ID,
		Message:     fmt.Sprintf("Project %q has been completed", project.Title),
		Type:        "project_completed",
		Link:        "/projects/" + project.ID.String(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to deliver completion notification",
			zap.Error(err),
			zap.String("recipient_id", root.ID.String()),
		)
	}
}
