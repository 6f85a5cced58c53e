package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/metrics"
	"github.com/studyhall-app/studyhall/internal/models"
)

// LessonListResponse represents a paginated lesson list.
type LessonListResponse struct {
	Lessons []models.Lesson `json:"lessons"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListLessons returns lessons newest-first with limit/offset paging.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	lessons, total, err := h.db.ListLessons(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list lessons")
		return
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}

	h.JSON(w, http.StatusOK, LessonListResponse{
		Lessons: lessons,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// CreateLessonRequest represents a lesson scheduling request.
type CreateLessonRequest struct {
	Topic       string    `json:"topic"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// CreateLesson schedules a new lesson. Staff only.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())

	var req CreateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ScheduledAt.IsZero() {
		h.Error(w, http.StatusBadRequest, "scheduled_at is required")
		return
	}

	lesson, err := h.dispatcher.CreateLesson(r.Context(), actor, req.Topic, req.ScheduledAt)
	if err != nil {
		h.DispatchError(w, err)
		return
	}

	metrics.LessonTransitions.WithLabelValues(string(models.LessonScheduled)).Inc()
	h.JSON(w, http.StatusCreated, lesson)
}

// lessonIDFromPath parses the {id} path parameter.
func (h *Handler) lessonIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid lesson ID")
		return uuid.Nil, false
	}
	return id, true
}

// StartLesson moves a scheduled lesson to live. Staff only.
func (h *Handler) StartLesson(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())
	id, ok := h.lessonIDFromPath(w, r)
	if !ok {
		return
	}

	lesson, err := h.dispatcher.StartLesson(r.Context(), actor, id)
	if err != nil {
		h.DispatchError(w, err)
		return
	}

	metrics.LessonTransitions.WithLabelValues(string(models.LessonLive)).Inc()
	h.JSON(w, http.StatusOK, lesson)
}

// EndLesson moves a live lesson to completed. Staff only.
func (h *Handler) EndLesson(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())
	id, ok := h.lessonIDFromPath(w, r)
	if !ok {
		return
	}

	lesson, err := h.dispatcher.EndLesson(r.Context(), actor, id)
	if err != nil {
		h.DispatchError(w, err)
		return
	}

	metrics.LessonTransitions.WithLabelValues(string(models.LessonCompleted)).Inc()
	h.JSON(w, http.StatusOK, lesson)
}

// DeleteLesson removes a scheduled or live lesson. Staff only.
func (h *Handler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())
	id, ok := h.lessonIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.dispatcher.DeleteLesson(r.Context(), actor, id); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
