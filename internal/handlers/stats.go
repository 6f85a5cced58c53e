package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/models"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalProfiles  int64            `json:"total_profiles"`
	TotalLessons   int64            `json:"total_lessons"`
	TotalGroups    int64            `json:"total_groups"`
	ActiveLesson   *models.Lesson   `json:"active_lesson"`
	LastActivity   string           `json:"last_activity"`
	RecentMessages []models.Message `json:"recent_messages"`
}

// Stats returns platform statistics for the landing page.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalProfiles, err := h.db.CountProfiles(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count profiles")
		return
	}

	totalLessons, err := h.db.CountLessons(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count lessons")
		return
	}

	totalGroups, err := h.db.CountGroups(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count groups")
		return
	}

	st := h.resolver.State()
	room := chat.ClassRoomFor(st, time.Now())

	messages, err := h.redis.Range(ctx, room.LogKey(), 5, 0)
	if err != nil {
		// Non-fatal, continue with empty messages
		messages = nil
	}
	for i := range messages {
		if len(messages[i].Content) > 200 {
			messages[i].Content = messages[i].Content[:197] + "..."
		}
	}
	lastActivity := "no activity yet"
	if len(messages) > 0 {
		lastActivity = formatTimeAgo(time.UnixMilli(messages[0].Timestamp))
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalProfiles:  totalProfiles,
		TotalLessons:   totalLessons,
		TotalGroups:    totalGroups,
		ActiveLesson:   st.ActiveLesson,
		LastActivity:   lastActivity,
		RecentMessages: messages,
	})
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
