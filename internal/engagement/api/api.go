// Package api is the thin HTTP surface over the engagement workflow. It
// decodes JSON, resolves the authenticated principal, delegates to the
// controller and maps sentinel errors onto status codes. No business rules
// live here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gartstein/bizlink/internal/engagement/auth"
	"github.com/gartstein/bizlink/internal/engagement/controller"
	e "github.com/gartstein/bizlink/internal/engagement/errors"
	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the engagement HTTP API.
type Handler struct {
	service *controller.EngagementService
	logger  *zap.Logger
}

// NewRouter builds the API router wrapped in bearer authentication.
func NewRouter(service *controller.EngagementService, logger *zap.Logger, jwtSecret string) http.Handler {
	h := &Handler{
		service: service,
		logger:  logger.Named("http_api"),
	}

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/companies", func(r chi.Router) {
			r.Post("/", h.createCompany)
			r.Post("/import", h.importCompanies)
			r.Route("/{companyID}", func(r chi.Router) {
				r.Get("/", h.getCompany)
				r.Patch("/", h.updateCompany)
				r.Post("/verify", h.verifyCompany)
				r.Post("/portfolio", h.addPortfolioProject)
			})
		})
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.proposeRequest)
			r.Post("/{requestID}/decision", h.decideRequest)
		})
		r.Route("/projects", func(r chi.Router) {
			r.Post("/{projectID}/complete", h.markCompleted)
			r.Post("/{projectID}/reviews", h.postReview)
		})
	})

	return auth.HTTPMiddleware(r, jwtSecret)
}

type companyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Employees   int    `json:"employees"`
	FoundedYear int    `json:"founded_year"`
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var body companyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	company := &models.Company{
		Name:        body.Name,
		Description: body.Description,
		Employees:   body.Employees,
		FoundedYear: body.FoundedYear,
	}
	created, err := h.service.CreateCompany(r.Context(), company, principal.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		http.Error(w, "invalid company ID", http.StatusBadRequest)
		return
	}
	company, err := h.service.GetCompany(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, company)
}

func (h *Handler) updateCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		http.Error(w, "invalid company ID", http.StatusBadRequest)
		return
	}
	var update models.CompanyUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	update.ID = id
	updated, err := h.service.UpdateCompany(r.Context(), &update)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) verifyCompany(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, models.RoleAdmin) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		http.Error(w, "invalid company ID", http.StatusBadRequest)
		return
	}
	changes, err := h.service.VerifyCompany(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"role_changes": changes})
}

type importRequest struct {
	Records []struct {
		companyRequest
		Portfolio []portfolioRequest `json:"portfolio"`
	} `json:"records"`
}

type portfolioRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ClientName     string     `json:"client_name"`
	ProviderName   string     `json:"provider_name"`
	CompletionDate *time.Time `json:"completion_date"`
}

func (h *Handler) importCompanies(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, models.RoleAdmin) {
		return
	}
	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	records := make([]controller.ImportRecord, 0, len(body.Records))
	for _, rec := range body.Records {
		record := controller.ImportRecord{
			Company: models.Company{
				Name:        rec.Name,
				Description: rec.Description,
				Employees:   rec.Employees,
				FoundedYear: rec.FoundedYear,
			},
		}
		for _, item := range rec.Portfolio {
			record.Portfolio = append(record.Portfolio, portfolioItem(item))
		}
		records = append(records, record)
	}
	result, err := h.service.ImportCompanies(r.Context(), records)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) addPortfolioProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		http.Error(w, "invalid company ID", http.StatusBadRequest)
		return
	}
	var body portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	project, err := h.service.AddPortfolioProject(r.Context(), id, portfolioItem(body))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

type proposeRequestBody struct {
	ClientCompanyID   uuid.UUID   `json:"client_company_id"`
	ProviderCompanyID uuid.UUID   `json:"provider_company_id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	ServiceIDs        []uuid.UUID `json:"service_ids"`
}

func (h *Handler) proposeRequest(w http.ResponseWriter, r *http.Request) {
	var body proposeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	request := &models.ProjectRequest{
		ClientCompanyID:   body.ClientCompanyID,
		ProviderCompanyID: body.ProviderCompanyID,
		Title:             body.Title,
		Description:       body.Description,
	}
	created, err := h.service.ProposeRequest(r.Context(), request, body.ServiceIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		http.Error(w, "invalid request ID", http.StatusBadRequest)
		return
	}
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	request, project, err := h.service.DecideRequest(r.Context(), id, body.Accept)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"request": request,
		"project": project,
	})
}

func (h *Handler) markCompleted(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}
	project, err := h.service.MarkProjectCompleted(r.Context(), id, principal.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, project)
}

func (h *Handler) postReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}
	var body struct {
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	review := &models.Review{
		ProjectID: id,
		UserID:    principal.UserID,
		Rating:    body.Rating,
		Text:      body.Text,
	}
	created, err := h.service.PostReview(r.Context(), review)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, role models.Role) bool {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return false
	}
	if !principal.HasRole(role) {
		http.Error(w, "insufficient role", http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, e.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, e.ErrInvalidState), errors.Is(err, e.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, e.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, e.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, e.ErrUnresolvedReference):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func portfolioItem(body portfolioRequest) controller.PortfolioItem {
	return controller.PortfolioItem{
		Title:          body.Title,
		Description:    body.Description,
		ClientName:     body.ClientName,
		ProviderName:   body.ProviderName,
		CompletionDate: body.CompletionDate,
	}
}
