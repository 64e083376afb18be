package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/flowpbx/remotecc/internal/database/models"
	"github.com/flowpbx/remotecc/internal/events"
	"github.com/flowpbx/remotecc/internal/routing"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxWebhookBody bounds the request body read from the telephony platform.
const maxWebhookBody = 64 << 10

// notifyAck is the fixed body returned by the notify webhook.
const notifyAck = "Received"

// Webhook field names as sent by the telephony platform.
const (
	fieldPBXID          = "PBX_ID"
	fieldCallID         = "CALL_ID"
	fieldDialedNumber   = "DIALED_NUMBER"
	fieldCallerIDNumber = "CALLER_ID_NUMBER"
	fieldCallerIDName   = "CALLER_ID_NAME"
)

// callInput is the webhook payload. Every field is optional.
type callInput struct {
	PBXID          string
	CallID         string
	DialedNumber   string
	CallerIDNumber string
	CallerIDName   string
}

// handleRemoteCC answers a routing request with the bare extension on a
// match and an empty body otherwise. The status is always 200.
func (s *Server) handleRemoteCC(w http.ResponseWriter, r *http.Request) {
	defer s.recoverWebhook(w, r, "")

	ev := s.processCall(w, r, models.SourceRemoteCC, events.EventNewEvent)
	if ev.MatchedExtension != nil {
		writeText(w, *ev.MatchedExtension)
		return
	}
	writeText(w, "")
}

// handleNotify logs the call and acknowledges it. The routing outcome is
// recorded but not returned.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	defer s.recoverWebhook(w, r, notifyAck)

	s.processCall(w, r, models.SourceNotify, events.EventNewCall)
	writeText(w, notifyAck)
}

// recoverWebhook keeps a panic from turning into an error status for the
// telephony platform, which treats anything but 200 as a hard failure.
func (s *Server) recoverWebhook(w http.ResponseWriter, r *http.Request, fallback string) {
	rec := recover()
	if rec == nil {
		return
	}
	slog.Error("webhook panic recovered",
		"request_id", chimw.GetReqID(r.Context()),
		"path", r.URL.Path,
		"panic", rec,
		"stack", string(debug.Stack()),
	)
	writeText(w, fallback)
}

// processCall runs extraction, resolution, persistence and notification for
// one webhook call and returns the event as logged. Persistence failures are
// logged and counted; the returned event still carries the routing outcome.
func (s *Server) processCall(w http.ResponseWriter, r *http.Request, source, eventName string) *models.CallEvent {
	start := time.Now()
	in := readCallInput(w, r)

	areaCode := routing.ExtractAreaCode(in.CallerIDNumber)

	// The platform may hang up before we finish; the log write must not be
	// cancelled with it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.persistTimeout)
	defer cancel()

	ev := &models.CallEvent{
		Source:         source,
		PBXID:          in.PBXID,
		CallID:         in.CallID,
		DialedNumber:   in.DialedNumber,
		CallerIDNumber: in.CallerIDNumber,
		CallerIDName:   in.CallerIDName,
		CallerAreaCode: areaCode,
	}
	if rule, ok := s.resolver.Resolve(ctx, areaCode); ok {
		state, ext := rule.State, rule.Extension
		ev.MatchedState = &state
		ev.MatchedExtension = &ext
	}

	logger := slog.With(
		"request_id", chimw.GetReqID(r.Context()),
		"source", source,
		"call_id", ev.CallID,
		"area_code", areaCode,
	)

	if err := s.events.Create(ctx, ev); err != nil {
		logger.Error("webhook: failed to persist call event", "error", err)
		if s.metrics != nil {
			s.metrics.ObservePersistFailure(source)
		}
	} else {
		delivered := s.hub.Publish(events.Message{Event: eventName, Data: toCallEventResponse(ev)})
		logger.Debug("webhook: call event published", "event_id", ev.ID, "delivered", delivered)
	}

	if s.metrics != nil {
		s.metrics.ObserveRequest(source, ev.Matched(), time.Since(start))
	}
	if ev.Matched() {
		logger.Info("webhook: call routed", "state", *ev.MatchedState, "extension", *ev.MatchedExtension)
	} else {
		logger.Info("webhook: no route for caller")
	}
	return ev
}

// readCallInput collects the webhook fields from a JSON, multipart or
// url-encoded body, falling back to the query string. Malformed input yields
// empty fields rather than an error.
func readCallInput(w http.ResponseWriter, r *http.Request) callInput {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var lookup func(name string) string
	switch mediaType {
	case "application/json":
		fields, err := decodeJSONFields(r.Body)
		if err != nil {
			slog.Warn("webhook: unreadable json body", "error", err)
		}
		query := r.URL.Query()
		lookup = func(name string) string {
			if v, ok := fields[name]; ok {
				return v
			}
			if v, ok := fields[strings.ToLower(name)]; ok {
				return v
			}
			return query.Get(name)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxWebhookBody); err != nil {
			slog.Warn("webhook: unreadable multipart body", "error", err)
		}
		lookup = formLookup(r)
	default:
		if err := r.ParseForm(); err != nil {
			slog.Warn("webhook: unreadable form body", "error", err)
		}
		lookup = formLookup(r)
	}

	return callInput{
		PBXID:          sanitizeField(lookup(fieldPBXID)),
		CallID:         sanitizeField(lookup(fieldCallID)),
		DialedNumber:   sanitizeField(lookup(fieldDialedNumber)),
		CallerIDNumber: sanitizeField(lookup(fieldCallerIDNumber)),
		CallerIDName:   sanitizeField(lookup(fieldCallerIDName)),
	}
}

func formLookup(r *http.Request) func(string) string {
	return func(name string) string {
		if v := r.FormValue(name); v != "" {
			return v
		}
		return r.FormValue(strings.ToLower(name))
	}
}

// decodeJSONFields reads a flat JSON object. Strings are kept as-is, numbers
// keep their literal text and booleans are formatted; nested values and nulls
// are dropped.
func decodeJSONFields(body io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}
	return fields, nil
}
