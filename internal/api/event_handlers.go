package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flowpbx/remotecc/internal/database"
	"github.com/flowpbx/remotecc/internal/database/models"
)

// callEventResponse is the JSON shape of a logged call, shared by the query
// endpoints and the push channel.
type callEventResponse struct {
	ID               int64   `json:"id"`
	Source           string  `json:"source"`
	PBXID            string  `json:"pbx_id"`
	CallID           string  `json:"call_id"`
	DialedNumber     string  `json:"dialed_number"`
	CallerIDNumber   string  `json:"caller_id_number"`
	CallerIDName     string  `json:"caller_id_name"`
	CallerAreaCode   string  `json:"caller_area_code"`
	MatchedState     *string `json:"matched_state"`
	MatchedExtension *string `json:"matched_extension"`
	CreatedAt        string  `json:"created_at"`
}

func toCallEventResponse(e *models.CallEvent) callEventResponse {
	return callEventResponse{
		ID:               e.ID,
		Source:           e.Source,
		PBXID:            e.PBXID,
		CallID:           e.CallID,
		DialedNumber:     e.DialedNumber,
		CallerIDNumber:   e.CallerIDNumber,
		CallerIDName:     e.CallerIDName,
		CallerAreaCode:   e.CallerAreaCode,
		MatchedState:     e.MatchedState,
		MatchedExtension: e.MatchedExtension,
		CreatedAt:        e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// handleListEvents returns routing webhook events, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.listCallEvents(w, r, models.SourceRemoteCC)
}

// handleListCalls returns notify webhook events, newest first.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	s.listCallEvents(w, r, models.SourceNotify)
}

func (s *Server) listCallEvents(w http.ResponseWriter, r *http.Request, source string) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	list, err := s.events.List(r.Context(), database.CallEventFilter{
		Source: source,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		slog.Error("list call events: failed to query", "error", err, "source", source)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]callEventResponse, len(list))
	for i := range list {
		items[i] = toCallEventResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, items)
}
