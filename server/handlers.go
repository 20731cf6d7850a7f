package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"blockstream/highlight"
	"blockstream/internal"
	"blockstream/logger"
	"blockstream/parser"
	"blockstream/render"
	"blockstream/speech"
	"blockstream/stream"
	"blockstream/types"
)

// maxBodySize caps JSON request bodies
const maxBodySize = 8 << 20

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	Blocks   types.Blocks     `json:"blocks"`
	Metadata []types.Metadata `json:"metadata"`
	Length   int              `json:"length"`
}

type chunkRequest struct {
	Delta string `json:"delta"`
}

type chunkResponse struct {
	types.StreamResult
	States []string `json:"states"`
}

func (r chunkResponse) MarshalJSON() ([]byte, error) {
	snapshot, err := json.Marshal(r.StreamResult)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(snapshot, &out); err != nil {
		return nil, err
	}
	states, err := json.Marshal(r.States)
	if err != nil {
		return nil, err
	}
	out["states"] = states
	return json.Marshal(out)
}

type highlightRequest struct {
	Text       string                  `json:"text"`
	Highlights []types.HighlightRecord `json:"highlights"`
}

type resolveResponse struct {
	Text     string                   `json:"text"`
	Blocks   types.Blocks             `json:"blocks"`
	Overlays []highlight.BlockOverlay `json:"overlays"`
}

type speechRequest struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

// handleRoot provides basic information about the service
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "blockstream",
		"version": s.version,
		"status":  "running",
		"endpoints": []string{
			"GET /health - Health check",
			"GET /metrics - Prometheus metrics",
			"POST /v1/blocks - Parse a complete message",
			"POST /v1/blocks/stream - Parse an SSE chat stream",
			"POST /v1/sessions/{id}/chunks - Feed a streaming session",
			"POST /v1/sessions/{id}/finish - Finish a streaming session",
			"POST /v1/highlights/resolve - Resolve stored highlights",
			"POST /v1/render - Render a message as HTML",
			"POST|GET|DELETE /v1/speech - Read a message aloud",
		},
	})
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.sessions.Len(),
	}
	if s.speech != nil {
		health, _ := s.health.Health(speechBackend)
		resp["speech"] = health
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req parseRequest
	if !s.decode(w, r, &req) {
		return
	}

	blocks := s.parse(req.Text)
	writeJSON(w, http.StatusOK, parseResponse{
		Blocks:   blocks,
		Metadata: nonNil(parser.ExtractMetadata(req.Text)),
		Length:   highlight.AssignSpans(blocks, s.engine.SeparatorWidth()),
	})
}

func (s *Server) parse(text string) []types.MessageBlock {
	start := time.Now()
	blocks := parser.Parse(text)
	s.metrics.ParseDuration.Observe(time.Since(start).Seconds())
	s.metrics.ObserveBlocks(blocks)
	return blocks
}

// handleParseStream reads an SSE chat stream from the request body and
// answers with an SSE stream of snapshots followed by a done event.
func (s *Server) handleParseStream(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}
	requestID := internal.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	session := parser.NewSession(s.log, requestID)
	reader := stream.NewReader(s.log, requestID)
	reader.OnChunk = s.metrics.StreamChunks.Inc

	err := reader.ConsumeSession(r.Context(), session, r.Body, func(res types.StreamResult) {
		writeEvent(w, "snapshot", res)
		flusher.Flush()
	})
	if err != nil {
		s.log.Warn(logger.ComponentServer, logger.CategoryStreaming, requestID, "Stream ended early", map[string]interface{}{
			"error": err.Error(),
		})
		writeEvent(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}

	blocks := session.Finish()
	s.metrics.ObserveBlocks(blocks)
	writeEvent(w, "done", parseResponse{
		Blocks:   blocks,
		Metadata: nonNil(session.Metadata()),
		Length:   highlight.AssignSpans(blocks, s.engine.SeparatorWidth()),
	})
	flusher.Flush()
}

func (s *Server) handleSessionChunk(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req chunkRequest
	if !s.decode(w, r, &req) {
		return
	}

	ss := s.sessions.GetOrCreate(r.PathValue("id"))
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.Session.Finished() {
		writeError(w, http.StatusConflict, "session already finished")
		return
	}
	res := ss.Session.Feed(req.Delta)
	s.metrics.StreamChunks.Inc()

	states := ss.Session.States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	writeJSON(w, http.StatusOK, chunkResponse{StreamResult: res, States: names})
}

func (s *Server) handleSessionFinish(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	id := r.PathValue("id")
	ss, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session %q not found", id))
		return
	}

	ss.mu.Lock()
	blocks := ss.Session.Finish()
	metadata := ss.Session.Metadata()
	ss.mu.Unlock()
	s.sessions.Remove(id)

	s.metrics.ObserveBlocks(blocks)
	writeJSON(w, http.StatusOK, parseResponse{
		Blocks:   blocks,
		Metadata: nonNil(metadata),
		Length:   highlight.AssignSpans(blocks, s.engine.SeparatorWidth()),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req highlightRequest
	if !s.decode(w, r, &req) {
		return
	}

	blocks := s.parse(req.Text)
	overlays := s.engine.Resolve(internal.GetRequestID(r.Context()), blocks, req.Highlights)
	if overlays == nil {
		overlays = []highlight.BlockOverlay{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Text:     s.engine.MessageText(blocks),
		Blocks:   blocks,
		Overlays: overlays,
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req highlightRequest
	if !s.decode(w, r, &req) {
		return
	}

	blocks := s.parse(req.Text)
	overlays := s.engine.Resolve(internal.GetRequestID(r.Context()), blocks, req.Highlights)

	opts := render.DefaultOptions()
	opts.SeparatorWidth = s.engine.SeparatorWidth()
	opts.Runs = highlight.Runs(overlays, len(blocks))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, render.HTML(blocks, opts))
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		id, active := s.speech.Active()
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": active, "messageId": id})
	case http.MethodDelete:
		s.speech.Stop()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		var req speechRequest
		if !s.decode(w, r, &req) {
			return
		}
		// Playback outlives the request
		err := s.speech.Start(context.WithoutCancel(r.Context()), req.MessageID, parser.Parse(req.Text))
		if errors.Is(err, speech.ErrNothingToSay) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, speech.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"active": true, "messageId": req.MessageID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		s.log.Warn(logger.ComponentServer, logger.CategoryRequest, internal.GetRequestID(r.Context()), "Invalid JSON in request", map[string]interface{}{
			"error": err.Error(),
			"path":  r.URL.Path,
		})
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeEvent(w io.Writer, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func nonNil(m []types.Metadata) []types.Metadata {
	if m == nil {
		return []types.Metadata{}
	}
	return m
}
