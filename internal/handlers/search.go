package handlers

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/studyhall-app/studyhall/internal/models"
)

var searchWordRegex = regexp.MustCompile(`[a-z0-9]+`)

// stopWords are common words to exclude from search
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"it": true, "that": true, "this": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "like": true,
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []models.Message `json:"results"`
	Total   int              `json:"total"`
}

// tokenize extracts searchable words from text.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	words := searchWordRegex.FindAllString(lower, -1)

	// Deduplicate and filter
	seen := make(map[string]bool)
	result := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 3 && !seen[w] && !stopWords[w] {
			seen[w] = true
			result = append(result, w)
		}
	}

	// Limit to 5 tokens
	if len(result) > 5 {
		result = result[:5]
	}

	return result
}

// Find handles full-text search across message logs.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	var after int64
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		if a, err := strconv.ParseInt(afterStr, 10, 64); err == nil {
			after = a
		}
	}

	// Optional room filter, matched against the log key prefix.
	roomFilter := r.URL.Query().Get("room")

	tokens := tokenize(query)
	if len(tokens) == 0 {
		h.JSON(w, http.StatusOK, SearchResponse{
			Query:   query,
			Results: []models.Message{},
			Total:   0,
		})
		return
	}

	messages, err := h.redis.SearchMessages(r.Context(), tokens, limit, after, roomFilter)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "search failed")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: messages,
		Total:   len(messages),
	})
}
