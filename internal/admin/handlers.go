// Package admin exposes the operator endpoints: custom questions and
// runtime game tuning.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game"
	"github.com/mathrumble/mathrumble/internal/models"
	"github.com/mathrumble/mathrumble/internal/questions"
)

// QuestionStore persists operator-authored questions.
type QuestionStore interface {
	CreateCustom(ctx context.Context, text string, answer float64, difficulty string, timeLimit int) (models.Question, error)
	ListCustom(ctx context.Context, difficulty string) ([]models.Question, error)
}

// SettingsTarget receives runtime tuning updates.
type SettingsTarget interface {
	UpdateDefaults(d game.Defaults)
}

type createQuestionRequest struct {
	QuestionText string  `json:"question_text"`
	Answer       float64 `json:"answer"`
	Difficulty   string  `json:"difficulty"`
	TimeLimit    int     `json:"time_limit"`
}

type updateSettingsRequest struct {
	Difficulty    *string `json:"difficulty"`
	WinThreshold  *int    `json:"win_threshold"`
	RoundDuration *int    `json:"round_duration"`
}

// Handler serves the admin endpoints. No auth here: the deployment is
// expected to gate /admin at the proxy.
type Handler struct {
	store    QuestionStore
	settings SettingsTarget
	log      zerolog.Logger
}

func NewHandler(store QuestionStore, settings SettingsTarget, logger zerolog.Logger) *Handler {
	return &Handler{store: store, settings: settings, log: logger}
}

// RegisterRoutes wires the admin endpoints into the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/questions", h.handleCreateQuestion)
	mux.HandleFunc("GET /admin/questions", h.handleListQuestions)
	mux.HandleFunc("PUT /admin/settings", h.handleUpdateSettings)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionText == "" {
		writeError(w, http.StatusBadRequest, "question_text is required")
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = questions.DifficultyEasy
	}
	if !questions.ValidDifficulty(req.Difficulty) {
		writeError(w, http.StatusBadRequest, "invalid difficulty level")
		return
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = 10
	}

	q, err := h.store.CreateCustom(r.Context(), req.QuestionText, req.Answer, req.Difficulty, req.TimeLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create custom question")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":      q.ID.String(),
		"message": "Question created successfully",
	})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty != "" && !questions.ValidDifficulty(difficulty) {
		writeError(w, http.StatusBadRequest, "invalid difficulty level")
		return
	}

	qs, err := h.store.ListCustom(r.Context(), difficulty)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list custom questions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if qs == nil {
		qs = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var d game.Defaults
	updated := map[string]any{}
	if req.Difficulty != nil {
		if !questions.ValidDifficulty(*req.Difficulty) {
			writeError(w, http.StatusBadRequest, "invalid difficulty level")
			return
		}
		d.Difficulty = *req.Difficulty
		updated["difficulty"] = *req.Difficulty
	}
	if req.WinThreshold != nil {
		if *req.WinThreshold <= 0 {
			writeError(w, http.StatusBadRequest, "win_threshold must be positive")
			return
		}
		d.WinThreshold = *req.WinThreshold
		updated["win_threshold"] = *req.WinThreshold
	}
	if req.RoundDuration != nil {
		if *req.RoundDuration <= 0 {
			writeError(w, http.StatusBadRequest, "round_duration must be positive")
			return
		}
		d.RoundDuration = *req.RoundDuration
		updated["round_duration"] = *req.RoundDuration
	}

	h.settings.UpdateDefaults(d)
	h.log.Info().Interface("updated", updated).Msg("game settings updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Settings updated",
		"updated": updated,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
