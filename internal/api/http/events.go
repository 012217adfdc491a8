package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// GET /events?since=<offset>&limit=
func ListEventsHandler(feed *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		events, err := feed.Since(r.Context(), since, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			respondError(w, err)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		respondJSON(w, http.StatusOK, events)
	}
}
