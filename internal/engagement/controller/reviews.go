package controller

import (
	"context"
	"fmt"

	"github.com/gartstein/bizlink/internal/engagement/db"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/events"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/google/uuid"
)

// PostReview records a rating against a completed project and recomputes
// the provider's aggregate rating in the same transaction: either both
// commit or neither does. Recomputation is a full mean over all reviews of
// the provider's projects, not an incremental adjustment.
func (s *EngagementService) PostReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", e.ErrInvalidInput)
	}
	if len(review.Text) > 3000 {
		return nil, fmt.Errorf("%w: review text too long", e.ErrInvalidInput)
	}

	companyIDs, err := s.repo.ListUserCompanyIDs(ctx, review.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user membership: %w", err)
	}

	var (
		providerID uuid.UUID
		recomputed bool
	)
	err = s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		project, err := txRepo.GetProject(ctx, review.ProjectID)
		if err != nil {
			return err
		}
		if !project.IsCompleted {
			return e.ErrProjectNotCompleted
		}

		pc, err := txRepo.GetProjectCompany(ctx, review.ProjectID)
		if err != nil {
			return err
		}
		// Discriminator first: when the client is a placeholder, the
		// client foreign key aliases the provider and must not admit
		// provider staff as reviewers.
		if pc.IsClient == models.OnlyProviderRegistered || !containsID(companyIDs, pc.ClientCompanyID) {
			return e.ErrNotAParticipant
		}

		exists, err := txRepo.ReviewExists(ctx, review.ProjectID, review.UserID)
		if err != nil {
			return err
		}
		if exists {
			return e.ErrDuplicateReview
		}

		review.ID = uuid.New()
		if err := txRepo.CreateReview(ctx, review); err != nil {
			return err
		}

		if pc.IsClient == models.OnlyClientRegistered {
			// Unregistered provider: the review stands, there is no
			// company to attribute the rating to.
			return nil
		}
		providerID = pc.ProviderCompanyID
		recomputed = true

		ratings, err := txRepo.ListProviderRatings(ctx, providerID)
		if err != nil {
			return err
		}
		return txRepo.SetCompanyRating(ctx, providerID, meanRating(ratings))
	})
	if err != nil {
		return nil, err
	}

	if recomputed {
		s.publishAsync(events.CompanyModified, providerID)
	}
	return review, nil
}

// meanRating is the arithmetic mean, 0 for an empty set.
func meanRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, rating := range ratings {
		sum += rating
	}
	return float64(sum) / float64(len(ratings))
}
