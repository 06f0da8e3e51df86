package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/annotateapp/annotate-server/internal/http/response"
)

// flagTarget is the validated shape of a flag/unflag request. The user
// ID arrives as a path parameter but is held to the same account format
// the rest of the system uses.
type flagTarget struct {
	UserID string `json:"userid" validate:"required,startswith=acct:"`
}

// handleListFlagged returns every currently suppressed user.
func (s *Server) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	flagged, err := s.moderation.Flagged(r.Context())
	if err != nil {
		s.logger.Error("list flagged users failed", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	rows := make([]map[string]string, 0, len(flagged))
	for _, userID := range flagged {
		rows = append(rows, map[string]string{"userid": userID})
	}

	response.Success(w, rows, s.logger)
}

// handleFlagUser suppresses a user's content site-wide.
func (s *Server) handleFlagUser(w http.ResponseWriter, r *http.Request) {
	target := flagTarget{UserID: chi.URLParam(r, "userid")}
	if err := s.validator.Validate(target); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.moderation.Flag(r.Context(), target.UserID); err != nil {
		s.logger.Error("flag user failed", "error", err, "user", target.UserID)
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"userid": target.UserID}, s.logger)
}

// handleUnflagUser lifts a user's suppression.
func (s *Server) handleUnflagUser(w http.ResponseWriter, r *http.Request) {
	target := flagTarget{UserID: chi.URLParam(r, "userid")}
	if err := s.validator.Validate(target); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.moderation.Unflag(r.Context(), target.UserID); err != nil {
		s.logger.Error("unflag user failed", "error", err, "user", target.UserID)
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

// handleReindex rebuilds the search index from the record store.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if err := s.moderation.ReindexAll(r.Context()); err != nil {
		s.logger.Error("reindex failed", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"status": "reindexed"}, s.logger)
}
