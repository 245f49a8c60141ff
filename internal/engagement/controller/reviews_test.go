package controller

import (
	"context"
	"testing"
	"time"

	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reviewFixture seeds a client company with three users and a provider, plus
// a helper for completed projects between them.
type reviewFixture struct {
	*fixture
	clientCo   *models.Company
	providerCo *models.Company
	reviewers  []*models.User
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := newFixture(t)
	clientCo := f.seedCompany(t, "Client Co", true)
	providerCo := f.seedCompany(t, "Provider Co", true)
	reviewers := []*models.User{
		f.seedUser(t, "one@client.com", models.RoleRoot, clientCo.ID, time.Now().UTC()),
		f.seedUser(t, "two@client.com", models.RoleVerifiedUser, clientCo.ID, time.Now().UTC()),
		f.seedUser(t, "three@client.com", models.RoleVerifiedUser, clientCo.ID, time.Now().UTC()),
	}
	return &reviewFixture{fixture: f, clientCo: clientCo, providerCo: providerCo, reviewers: reviewers}
}

func (rf *reviewFixture) completedProject(t *testing.T) *models.Project {
	t.Helper()
	return rf.seedProject(t, &models.ProjectCompany{
		ClientCompanyID:   rf.clientCo.ID,
		ProviderCompanyID: rf.providerCo.ID,
		IsClient:          models.BothRegistered,
	}, true)
}

func TestPostReviewRecomputesRating(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()

	ratings := []int{4, 5, 3}
	for i, rating := range ratings {
		project := rf.completedProject(t)
		review, err := rf.service.PostReview(ctx, &models.Review{
			ProjectID: project.ID,
			UserID:    rf.reviewers[i].ID,
			Rating:    rating,
			Text:      "solid work",
		})
		require.NoError(t, err)
		assert.NotEqual(t, "", review.ID.String())
	}

	provider, err := rf.repo.GetCompany(ctx, rf.providerCo.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, provider.Rating, 1e-9, "mean of 4, 5 and 3")
}

func TestPostReviewDuplicate(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()
	project := rf.completedProject(t)

	_, err := rf.service.PostReview(ctx, &models.Review{
		ProjectID: project.ID,
		UserID:    rf.reviewers[0].ID,
		Rating:    5,
	})
	require.NoError(t, err)

	_, err = rf.service.PostReview(ctx, &models.Review{
		ProjectID: project.ID,
		UserID:    rf.reviewers[0].ID,
		Rating:    1,
	})
	assert.ErrorIs(t, err, e.ErrDuplicateReview)

	provider, err := rf.repo.GetCompany(ctx, rf.providerCo.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, provider.Rating, 1e-9, "duplicate must not shift the aggregate")
}

func TestPostReviewIncompleteProject(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()
	active := rf.seedProject(t, &models.ProjectCompany{
		ClientCompanyID:   rf.clientCo.ID,
		ProviderCompanyID: rf.providerCo.ID,
		IsClient:          models.BothRegistered,
	}, false)

	_, err := rf.service.PostReview(ctx, &models.Review{
		ProjectID: active.ID,
		UserID:    rf.reviewers[0].ID,
		Rating:    4,
	})
	assert.ErrorIs(t, err, e.ErrProjectNotCompleted)
	assert.Zero(t, rf.countRows(t, &models.Review{}))
}

func TestPostReviewOnlyClientStaff(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()
	project := rf.completedProject(t)
	providerUser := rf.seedUser(t, "staff@provider.com", models.RoleVerifiedUser, rf.providerCo.ID, time.Now().UTC())

	_, err := rf.service.PostReview(ctx, &models.Review{
		ProjectID: project.ID,
		UserID:    providerUser.ID,
		Rating:    5,
	})
	assert.ErrorIs(t, err, e.ErrNotAParticipant)
}

func TestPostReviewInvalidRating(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()
	project := rf.completedProject(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := rf.service.PostReview(ctx, &models.Review{
			ProjectID: project.ID,
			UserID:    rf.reviewers[0].ID,
			Rating:    rating,
		})
		assert.ErrorIs(t, err, e.ErrInvalidInput)
	}
}

// With a placeholder provider the review stands but there is no registered
// company to re-rate, and the aliased client key must not be rated either.
func TestPostReviewPlaceholderProviderSkipsRating(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()

	ghost := "Ghost Provider"
	project := rf.seedProject(t, &models.ProjectCompany{
		ClientCompanyID:   rf.clientCo.ID,
		ProviderCompanyID: rf.clientCo.ID,
		IsClient:          models.OnlyClientRegistered,
		OtherCompanyName:  &ghost,
	}, true)

	_, err := rf.service.PostReview(ctx, &models.Review{
		ProjectID: project.ID,
		UserID:    rf.reviewers[0].ID,
		Rating:    2,
	})
	require.NoError(t, err)

	client, err := rf.repo.GetCompany(ctx, rf.clientCo.ID)
	require.NoError(t, err)
	assert.Zero(t, client.Rating, "aliased client key must not absorb the rating")
}

// With a placeholder client the client foreign key aliases the provider;
// provider staff must not slip through it as reviewers.
func TestPostReviewPlaceholderClientRejectsProviderStaff(t *testing.T) {
	rf := newReviewFixture(t)
	ctx := context.Background()
	providerUser := rf.seedUser(t, "staff@provider.com", models.RoleVerifiedUser, rf.providerCo.ID, time.Now().UTC())

	ghost := "Ghost Client"
	project := rf.seedProject(t, &models.ProjectCompany{
		ClientCompanyID:   rf.providerCo.ID,
		ProviderCompanyID: rf.providerCo.ID,
		IsClient:          models.OnlyProviderRegistered,
		OtherCompanyName:  &ghost,
	}, true)

	_, err := rf.service.PostReview(ctx, &models.Review{
		ProjectID: project.ID,
		UserID:    providerUser.ID,
		Rating:    5,
	})
	assert.ErrorIs(t, err, e.ErrNotAParticipant)
}
