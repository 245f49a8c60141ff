package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/events"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRequestPair creates a verified client and provider with one provider
// service, ready for a proposal.
func seedRequestPair(t *testing.T, f *fixture) (client, provider *models.Company, service *models.Service) {
	t.Helper()
	client = f.seedCompany(t, "Client Co", true)
	provider = f.seedCompany(t, "Provider Co", true)
	service = &models.Service{ID: uuid.New(), Name: "Consulting"}
	require.NoError(t, f.repo.CreateService(context.Background(), service))
	return client, provider, service
}

func TestProposeRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, provider, service := seedRequestPair(t, f)
	staff := f.seedUser(t, "staff@provider.com", models.RoleVerifiedUser, provider.ID, time.Now().UTC())

	created, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: provider.ID,
		Title:             "Build integration",
		Description:       "Connect the systems",
	}, []uuid.UUID{service.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, created.Status)
	assert.Nil(t, created.DecidedAt)

	stored, err := f.repo.GetProjectRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Build integration", stored.Title)

	serviceIDs, err := f.repo.ListRequestServiceIDs(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{service.ID}, serviceIDs)

	notified := f.sink.ByType("project_request")
	require.Len(t, notified, 1)
	assert.Equal(t, staff.ID, notified[0].RecipientID)
}

func TestProposeRequestUnverifiedCounterparty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.seedCompany(t, "Client Co", true)
	provider := f.seedCompany(t, "Unverified Provider", false)

	_, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: provider.ID,
		Title:             "Doomed",
	}, nil)
	assert.ErrorIs(t, err, e.ErrUnverifiedCounterparty)
	assert.Zero(t, f.countRows(t, &models.ProjectRequest{}), "rejected proposal must not leave a row")
}

func TestProposeRequestUnknownCounterparty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.seedCompany(t, "Client Co", true)

	_, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: uuid.New(),
		Title:             "Doomed",
	}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidCounterparty)
}

func TestProposeRequestMissingTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, provider, _ := seedRequestPair(t, f)

	_, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: provider.ID,
	}, nil)
	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestDecideRequestAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, provider, service := seedRequestPair(t, f)

	proposed, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: provider.ID,
		Title:             "Build integration",
	}, []uuid.UUID{service.ID})
	require.NoError(t, err)

	f.producer.wg = new(sync.WaitGroup)
	f.producer.wg.Add(1)

	decided, project, err := f.service.DecideRequest(ctx, proposed.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, decided.Status)
	require.NotNil(t, decided.DecidedAt)
	require.NotNil(t, project)
	assert.Equal(t, "Build integration", project.Title)
	assert.False(t, project.IsCompleted)

	pc, err := f.repo.GetProjectCompany(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BothRegistered, pc.IsClient)
	assert.Equal(t, client.ID, pc.ClientCompanyID)
	assert.Equal(t, provider.ID, pc.ProviderCompanyID)
	assert.Nil(t, pc.OtherCompanyName)

	// Service mappings are copied from the request onto the project.
	names, err := f.repo.ListProviderServiceNames(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Consulting"}, names)

	f.producer.wg.Wait()
	produced := f.producer.Events()
	require.Len(t, produced, 1)
	assert.Equal(t, events.CompanyModified, produced[0].Type)
	assert.Equal(t, provider.ID.String(), produced[0].Company.ID)

	// Terminal: a second decision fails rather than flipping the outcome.
	_, _, err = f.service.DecideRequest(ctx, proposed.ID, false)
	assert.ErrorIs(t, err, e.ErrRequestAlreadyProcessed)
}

func TestDecideRequestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, provider, _ := seedRequestPair(t, f)

	proposed, err := f.service.ProposeRequest(ctx, &models.ProjectRequest{
		ClientCompanyID:   client.ID,
		ProviderCompanyID: provider.ID,
		Title:             "Declined work",
	}, nil)
	require.NoError(t, err)

	decided, project, err := f.service.DecideRequest(ctx, proposed.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, decided.Status)
	require.NotNil(t, decided.DecidedAt)
	assert.Nil(t, project)

	assert.Zero(t, f.countRows(t, &models.Project{}), "rejection must not materialize a project")
	assert.Empty(t, f.producer.Events(), "rejection publishes nothing")

	_, _, err = f.service.DecideRequest(ctx, proposed.ID, true)
	assert.ErrorIs(t, err, e.ErrRequestAlreadyProcessed)
}

func TestDecideRequestNotFound(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.DecideRequest(context.Background(), uuid.New(), true)
	assert.ErrorIs(t, err, e.ErrRequestNotFound)
}
