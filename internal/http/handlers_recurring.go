package http

import (
	"net/http"

	"propledger/internal/log"
)

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toTemplate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.service.CreateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring template created",
		log.FieldTemplateID, created.ID,
		log.FieldProjectID, created.ProjectID,
		log.FieldOperation, log.OpCreate)
	writeJSON(w, http.StatusCreated, newTemplateResponse(created))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	templates, err := s.service.ListTemplates(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponses(templates))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.service.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	instances, err := s.service.ListTemplateInstances(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templateDetailResponse{
		templateResponse: newTemplateResponse(t),
		Transactions:     newInstanceResponses(instances),
	})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req templatePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.service.UpdateTemplate(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponse(updated))
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.service.DeleteTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring template removed",
		log.FieldTemplateID, id,
		log.FieldOperation, log.OpDelete,
		"hard_delete", deleted)
	writeJSON(w, http.StatusOK, deleteTemplateResponse{ID: id, Deleted: deleted, Deactivated: !deleted})
}

func (s *Server) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.DeactivateTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.service.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponse(t))
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	instances, err := s.service.ListTemplateInstances(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceResponses(instances))
}

func (s *Server) handleFutureOccurrences(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := parseFutureOccurrencesQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	occ, err := s.service.FutureOccurrences(r.Context(), id, q.From, q.MonthsAhead)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFutureOccurrencesResponse(id, occ))
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req instancePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.service.UpdateInstance(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceResponse(updated))
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.DeleteInstance(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.service.GenerateForMonth(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring generation requested",
		log.FieldYear, year,
		log.FieldMonth, month,
		log.FieldOperation, log.OpGenerate,
		"generated_count", res.GeneratedCount)
	writeJSON(w, http.StatusOK, newGenerationResponse(res))
}
