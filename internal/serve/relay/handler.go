package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samsaffron/relaychat/internal/catalog"
)

const (
	msgRequestTimeout = "Request timeout"
	msgInternal       = "Internal server error"
	maxBodyBytes      = 4 << 20
)

// Handler serves the relay endpoints.
type Handler struct {
	relay   *Relay
	catalog *catalog.Catalog
	token   string
	log     zerolog.Logger
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Catalog *catalog.Catalog
	// Token, when set, is required as a bearer token on every /api route.
	Token  string
	Logger zerolog.Logger
}

func NewHandler(relay *Relay, opts HandlerOptions) *Handler {
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(nil)
	}
	return &Handler{
		relay:   relay,
		catalog: opts.Catalog,
		token:   strings.TrimSpace(opts.Token),
		log:     opts.Logger,
	}
}

// HTTPHandler returns an http.Handler for all relay routes.
func (h *Handler) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", h.auth(h.handleChat))
	mux.HandleFunc("/api/chat/ws", h.auth(h.handleWS))
	mux.HandleFunc("/api/models", h.auth(h.handleModels))
	mux.HandleFunc("/healthz", h.handleHealth)
	return requestLogger(h.log, mux)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := decodeBody(r.Body, &req); err != nil {
		h.log.Debug().Err(err).Msg("relay: malformed request body")
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: msgInternal})
		return
	}

	stream, err := h.relay.Open(r.Context(), req)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}
	defer stream.Close()

	trailers := wantsTrailers(r)
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	if trailers {
		hdr.Set("Trailer", strings.Join([]string{TrailerError, TrailerInputTokens, TrailerOutputTokens}, ", "))
	}
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			if usage := stream.Usage(); usage != nil && trailers {
				hdr.Set(TrailerInputTokens, strconv.Itoa(usage.InputTokens))
				hdr.Set(TrailerOutputTokens, strconv.Itoa(usage.OutputTokens))
			}
			h.log.Debug().Str("model", stream.Model()).Int("chunks", stream.Chunks()).Msg("relay: stream complete")
			return
		}
		if err != nil {
			h.log.Warn().Err(err).Str("model", stream.Model()).Int("chunks", stream.Chunks()).Msg("relay: stream failed mid-response")
			if !trailers {
				// Drop the connection without the terminating chunk.
				panic(http.ErrAbortHandler)
			}
			hdr.Set(TrailerError, Code(err))
			return
		}
		if _, werr := io.WriteString(w, chunk); werr != nil {
			h.log.Debug().Err(werr).Msg("relay: client went away")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handler) writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		h.log.Warn().Err(err).Msg("relay: upstream timed out before first chunk")
		writeJSON(w, http.StatusRequestTimeout, ErrorBody{Error: msgRequestTimeout})
	case errors.Is(err, ErrMalformedRequest):
		h.log.Debug().Err(err).Msg("relay: malformed request")
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: msgInternal})
	default:
		h.log.Error().Err(err).Msg("relay: upstream failed")
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: msgInternal})
	}
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	def := h.relay.DefaultModel()
	if _, err := h.catalog.Resolve(def); err != nil {
		def = h.catalog.Default().ID
	}
	writeJSON(w, http.StatusOK, ModelsBody{Models: h.catalog.All(), Default: def})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == h.token
}

func decodeBody(body io.Reader, req *ChatRequest) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		return errors.Wrap(err, "decode chat request")
	}
	return nil
}

func wantsTrailers(r *http.Request) bool {
	for _, v := range r.Header.Values("TE") {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), "trailers") {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
