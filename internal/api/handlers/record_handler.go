package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/records"
	"redbud/internal/pkg/errors"
)

// RecordHandler serves the record hierarchy. Authorization lives in the
// records service; handlers only decode, delegate and encode.
type RecordHandler struct {
	recordSvc *records.Service
}

func NewRecordHandler(recordSvc *records.Service) *RecordHandler {
	return &RecordHandler{recordSvc: recordSvc}
}

// Projects

type projectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *RecordHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	p, err := h.recordSvc.CreateProject(user, orgID, req.Title, req.Description)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *RecordHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	list, err := h.recordSvc.ListProjects(user, orgID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (h *RecordHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	p, err := h.recordSvc.GetProject(user, apiContext.Param(r, "project_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RecordHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	p, err := h.recordSvc.UpdateProject(user, apiContext.Param(r, "project_id"), req.Title, req.Description)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RecordHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.recordSvc.SoftDeleteProject(user, apiContext.Param(r, "project_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Species

func (h *RecordHandler) CreateSpecies(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var req records.SpeciesParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	sp, err := h.recordSvc.CreateSpecies(user, orgID, req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (h *RecordHandler) ListSpecies(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	list, err := h.recordSvc.ListSpecies(user, orgID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"species": list})
}

func (h *RecordHandler) GetSpecies(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	sp, err := h.recordSvc.GetSpecies(user, apiContext.Param(r, "species_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (h *RecordHandler) UpdateSpecies(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var req records.SpeciesParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	sp, err := h.recordSvc.UpdateSpecies(user, apiContext.Param(r, "species_id"), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (h *RecordHandler) DeleteSpecies(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.recordSvc.SoftDeleteSpecies(user, apiContext.Param(r, "species_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Accessions

func (h *RecordHandler) CreateAccession(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var req records.AccessionParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	a, err := h.recordSvc.CreateAccession(user, orgID, req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *RecordHandler) ListAccessions(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var projectID *string
	if pid := r.URL.Query().Get("project_id"); pid != "" {
		projectID = &pid
	}

	list, err := h.recordSvc.ListAccessions(user, orgID, projectID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessions": list})
}

func (h *RecordHandler) GetAccession(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	a, err := h.recordSvc.GetAccession(user, apiContext.Param(r, "accession_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *RecordHandler) UpdateAccession(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var req records.AccessionParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	a, err := h.recordSvc.UpdateAccession(user, apiContext.Param(r, "accession_id"), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *RecordHandler) DeleteAccession(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.recordSvc.SoftDeleteAccession(user, apiContext.Param(r, "accession_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Plants

func (h *RecordHandler) CreatePlant(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	accessionID := apiContext.Param(r, "accession_id")

	var req records.PlantParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	p, err := h.recordSvc.CreatePlant(user, accessionID, req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *RecordHandler) ListPlants(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	list, err := h.recordSvc.ListPlants(user, apiContext.Param(r, "accession_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": list})
}

func (h *RecordHandler) GetPlant(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	p, err := h.recordSvc.GetPlant(user, apiContext.Param(r, "plant_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RecordHandler) UpdatePlant(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var req records.PlantParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	p, err := h.recordSvc.UpdatePlant(user, apiContext.Param(r, "plant_id"), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RecordHandler) DeletePlant(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.recordSvc.SoftDeletePlant(user, apiContext.Param(r, "plant_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Event types

type eventTypeRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

func (h *RecordHandler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var req eventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	et, err := h.recordSvc.CreateEventType(user, orgID, req.Name, req.Description, req.DisplayOrder)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, et)
}

func (h *RecordHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	list, err := h.recordSvc.ListEventTypes(user, orgID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_types": list})
}

func (h *RecordHandler) DeleteEventType(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.recordSvc.SoftDeleteEventType(user, apiContext.Param(r, "event_type_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Plant events

func (h *RecordHandler) CreatePlantEvent(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	plantID := apiContext.Param(r, "plant_id")

	var req records.PlantEventParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	e, err := h.recordSvc.CreatePlantEvent(user, plantID, req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *RecordHandler) ListPlantEvents(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	list, err := h.recordSvc.ListPlantEvents(user, apiContext.Param(r, "plant_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}
