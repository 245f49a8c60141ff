// Package resolver disambiguates the counterparties of an engagement
// record. A counterparty name either matches a registered company or stays
// a free-text placeholder; in the placeholder case the missing side's
// foreign key is aliased to the known company so the engagement row keeps a
// non-null reference.
package resolver

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/google/uuid"
)

// Repository is the store surface the resolver needs.
type Repository interface {
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// Assignment is a disambiguated counterparty pairing, ready to be stored as
// a ProjectCompany row.
type Assignment struct {
	IsClient          models.Discriminator
	ClientCompanyID   uuid.UUID
	ProviderCompanyID uuid.UUID
	// OtherCompanyName holds the free-text name of the unregistered side.
	// Empty when both sides are registered.
	OtherCompanyName string
}

type Resolver struct {
	repo Repository
}

func New(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve maps a (clientName, providerName) pair onto company identities.
// When only one name matches, the unknown side's id is aliased to the known
// company and the free-text name is preserved. When neither matches the
// record cannot be stored; companies are never auto-created from free text.
func (r *Resolver) Resolve(ctx context.Context, clientName, providerName string) (*Assignment, error) {
	client, err := r.lookup(ctx, clientName)
	if err != nil {
		return nil, err
	}
	provider, err := r.lookup(ctx, providerName)
	if err != nil {
		return nil, err
	}

	switch {
	case client != nil && provider != nil:
		return &Assignment{
			IsClient:          models.BothRegistered,
			ClientCompanyID:   client.ID,
			ProviderCompanyID: provider.ID,
		}, nil
	case client != nil:
		return &Assignment{
			IsClient:          models.OnlyClientRegistered,
			ClientCompanyID:   client.ID,
			ProviderCompanyID: client.ID,
			OtherCompanyName:  providerName,
		}, nil
	case provider != nil:
		return &Assignment{
			IsClient:          models.OnlyProviderRegistered,
			ClientCompanyID:   provider.ID,
			ProviderCompanyID: provider.ID,
			OtherCompanyName:  clientName,
		}, nil
	default:
		return nil, fmt.Errorf("%w: neither %q nor %q is registered",
			e.ErrUnresolvedCounterparty, clientName, providerName)
	}
}

func (r *Resolver) lookup(ctx context.Context, name string) (*models.Company, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty counterparty name", e.ErrInvalidInput)
	}
	company, err := r.repo.GetCompanyByName(ctx, name)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return company, nil
}

// ProjectCompany converts an assignment into the engagement row for a
// project.
func (a *Assignment) ProjectCompany(projectID uuid.UUID) *models.ProjectCompany {
	pc := &models.ProjectCompany{
		ProjectID:         projectID,
		ClientCompanyID:   a.ClientCompanyID,
		ProviderCompanyID: a.ProviderCompanyID,
		IsClient:          a.IsClient,
	}
	if a.IsClient != models.BothRegistered {
		name := a.OtherCompanyName
		pc.OtherCompanyName = &name
	}
	return pc
}

// Names reconstructs the display names of both counterparties from an
// engagement row, branching on the discriminator before any foreign-key
// lookup.
func (r *Resolver) Names(ctx context.Context, pc *models.ProjectCompany) (clientName, providerName string, err error) {
	placeholder := ""
	if pc.OtherCompanyName != nil {
		placeholder = *pc.OtherCompanyName
	}

	switch pc.IsClient {
	case models.OnlyProviderRegistered:
		provider, err := r.repo.GetCompany(ctx, pc.ProviderCompanyID)
		if err != nil {
			return "", "", err
		}
		return placeholder, provider.Name, nil
	case models.OnlyClientRegistered:
		client, err := r.repo.GetCompany(ctx, pc.ClientCompanyID)
		if err != nil {
			return "", "", err
		}
		return client.Name, placeholder, nil
	case models.BothRegistered:
		client, err := r.repo.GetCompany(ctx, pc.ClientCompanyID)
		if err != nil {
			return "", "", err
		}
		provider, err := r.repo.GetCompany(ctx, pc.ProviderCompanyID)
		if err != nil {
			return "", "", err
		}
		return client.Name, provider.Name, nil
	default:
		return "", "", fmt.Errorf("%w: discriminator %d", e.ErrInvalidInput, pc.IsClient)
	}
}
