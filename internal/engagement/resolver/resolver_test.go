package resolver

import (
	"context"
	"testing"

	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo resolves companies from an in-memory map.
type fakeRepo struct {
	byName map[string]*models.Company
}

func newFakeRepo(companies ...*models.Company) *fakeRepo {
	repo := &fakeRepo{byName: make(map[string]*models.Company)}
	for _, company := range companies {
		repo.byName[company.Name] = company
	}
	return repo
}

func (f *fakeRepo) GetCompanyByName(_ context.Context, name string) (*models.Company, error) {
	if company, ok := f.byName[name]; ok {
		return company, nil
	}
	return nil, e.ErrCompanyNotFound
}

func (f *fakeRepo) GetCompany(_ context.Context, id uuid.UUID) (*models.Company, error) {
	for _, company := range f.byName {
		if company.ID == id {
			return company, nil
		}
	}
	return nil, e.ErrCompanyNotFound
}

func TestResolve(t *testing.T) {
	acme := &models.Company{ID: uuid.New(), Name: "Acme"}
	globex := &models.Company{ID: uuid.New(), Name: "Globex"}
	r := New(newFakeRepo(acme, globex))
	ctx := context.Background()

	tests := []struct {
		name         string
		clientName   string
		providerName string
		want         *Assignment
		wantErr      error
	}{
		{
			name:         "both registered",
			clientName:   "Acme",
			providerName: "Globex",
			want: &Assignment{
				IsClient:          models.BothRegistered,
				ClientCompanyID:   acme.ID,
				ProviderCompanyID: globex.ID,
			},
		},
		{
			name:         "provider unknown",
			clientName:   "Acme",
			providerName: "Ghost",
			want: &Assignment{
				IsClient:          models.OnlyClientRegistered,
				ClientCompanyID:   acme.ID,
				ProviderCompanyID: acme.ID,
				OtherCompanyName:  "Ghost",
			},
		},
		{
			name:         "client unknown",
			clientName:   "Phantom",
			providerName: "Globex",
			want: &Assignment{
				IsClient:          models.OnlyProviderRegistered,
				ClientCompanyID:   globex.ID,
				ProviderCompanyID: globex.ID,
				OtherCompanyName:  "Phantom",
			},
		},
		{
			name:         "neither registered",
			clientName:   "Phantom",
			providerName: "Ghost",
			wantErr:      e.ErrUnresolvedCounterparty,
		},
		{
			name:         "empty client name",
			clientName:   "",
			providerName: "Globex",
			wantErr:      e.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.clientName, tt.providerName)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignmentProjectCompany(t *testing.T) {
	projectID := uuid.New()
	clientID := uuid.New()

	aliased := &Assignment{
		IsClient:          models.OnlyClientRegistered,
		ClientCompanyID:   clientID,
		ProviderCompanyID: clientID,
		OtherCompanyName:  "Ghost",
	}
	pc := aliased.ProjectCompany(projectID)
	assert.Equal(t, projectID, pc.ProjectID)
	assert.Equal(t, models.OnlyClientRegistered, pc.IsClient)
	require.NotNil(t, pc.OtherCompanyName)
	assert.Equal(t, "Ghost", *pc.OtherCompanyName)

	both := &Assignment{
		IsClient:          models.BothRegistered,
		ClientCompanyID:   clientID,
		ProviderCompanyID: uuid.New(),
	}
	pc = both.ProjectCompany(projectID)
	assert.Nil(t, pc.OtherCompanyName, "no placeholder when both sides are registered")
}

func TestNames(t *testing.T) {
	acme := &models.Company{ID: uuid.New(), Name: "Acme"}
	globex := &models.Company{ID: uuid.New(), Name: "Globex"}
	r := New(newFakeRepo(acme, globex))
	ctx := context.Background()

	ghost := "Ghost"

	tests := []struct {
		name         string
		pc           *models.ProjectCompany
		wantClient   string
		wantProvider string
	}{
		{
			name: "both registered",
			pc: &models.ProjectCompany{
				ClientCompanyID:   acme.ID,
				ProviderCompanyID: globex.ID,
				IsClient:          models.BothRegistered,
			},
			wantClient:   "Acme",
			wantProvider: "Globex",
		},
		{
			name: "placeholder provider",
			pc: &models.ProjectCompany{
				ClientCompanyID:   acme.ID,
				ProviderCompanyID: acme.ID,
				IsClient:          models.OnlyClientRegistered,
				OtherCompanyName:  &ghost,
			},
			wantClient:   "Acme",
			wantProvider: "Ghost",
		},
		{
			name: "placeholder client",
			pc: &models.ProjectCompany{
				ClientCompanyID:   globex.ID,
				ProviderCompanyID: globex.ID,
				IsClient:          models.OnlyProviderRegistered,
				OtherCompanyName:  &ghost,
			},
			wantClient:   "Ghost",
			wantProvider: "Globex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, provider, err := r.Names(ctx, tt.pc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClient, client)
			assert.Equal(t, tt.wantProvider, provider)
		})
	}
}
