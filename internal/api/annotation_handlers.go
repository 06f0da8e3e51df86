package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/annotateapp/annotate-server/internal/http/response"
)

// handleSearch runs a visibility-scoped search. Every query parameter is
// part of the query language; pagination and sorting ride alongside the
// field clauses.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)

	result, err := s.annotations.Search(ctx, principal, r.URL.Query())
	if err != nil {
		s.logger.Error("search failed", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, annotation := range result.Rows {
		rows = append(rows, annotation.ToMap())
	}

	response.Success(w, map[string]any{
		"total": result.Total,
		"rows":  rows,
	}, s.logger)
}

// handleListAnnotations returns the most recently updated annotations
// visible to the caller.
func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)

	limit := s.pageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	annotations, err := s.annotations.Recent(ctx, principal, limit)
	if err != nil {
		s.logger.Error("list annotations failed", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	rows := make([]map[string]any, 0, len(annotations))
	for _, annotation := range annotations {
		rows = append(rows, annotation.ToMap())
	}

	response.Success(w, rows, s.logger)
}

// handleCreateAnnotation stores a new annotation from the request body.
func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)

	var fields map[string]any
	if err := json.UnmarshalRead(r.Body, &fields); err != nil {
		response.BadRequest(w, "could not read request body as JSON", s.logger)
		return
	}

	created, err := s.annotations.Create(ctx, principal, fields)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, created.ToMap(), s.logger)
}

// handleReadAnnotation returns a single annotation.
func (s *Server) handleReadAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)
	id := chi.URLParam(r, "id")

	annotation, err := s.annotations.Read(ctx, principal, id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, annotation.ToMap(), s.logger)
}

// handleUpdateAnnotation merges the request body into an annotation.
func (s *Server) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)
	id := chi.URLParam(r, "id")

	var fields map[string]any
	if err := json.UnmarshalRead(r.Body, &fields); err != nil {
		response.BadRequest(w, "could not read request body as JSON", s.logger)
		return
	}

	updated, err := s.annotations.Update(ctx, principal, id, fields)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, updated.ToMap(), s.logger)
}

// handleDeleteAnnotation removes an annotation.
func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := getPrincipal(ctx)
	id := chi.URLParam(r, "id")

	deleted, err := s.annotations.Delete(ctx, principal, id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"id":      deleted.ID,
		"deleted": true,
	}, s.logger)
}
