package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/forum-service/internal/forum"
	"github.com/vasiliy-maslov/forum-service/internal/handler"
	"github.com/vasiliy-maslov/forum-service/internal/user"
)

const maxBodyBytes = 1 << 20

// Invoker serves one gateway event.
type Invoker interface {
	Handle(ctx context.Context, req handler.Request) (handler.Response, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter exposes the forum handler over plain HTTP. "/" adapts native
// requests into events, POST /invoke accepts raw events.
func NewRouter(h Invoker, db Pinger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("transport: health check failed")
			respondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/invoke", func(w http.ResponseWriter, r *http.Request) {
		var event handler.Request
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&event); err != nil {
			log.Error().Err(err).Msg("transport: failed to decode event")
			respondWithError(w, http.StatusBadRequest, "Invalid event payload")
			return
		}
		if event.RequestContext.RequestID == "" {
			event.RequestContext.RequestID = middleware.GetReqID(r.Context())
		}

		respondWithJSON(w, http.StatusOK, invoke(r.Context(), h, event))
	})

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		event, err := eventFromRequest(r)
		if err != nil {
			log.Error().Err(err).Msg("transport: failed to read request body")
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		writeResponse(w, invoke(r.Context(), h, event))
	})

	return r
}

// invoke runs the handler and turns a returned error into the response the
// runtime would produce for it.
func invoke(ctx context.Context, h Invoker, event handler.Request) handler.Response {
	resp, err := h.Handle(ctx, event)
	if err == nil {
		return resp
	}

	status := mapErrorToStatusCode(err)
	message := http.StatusText(status)
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	return handler.Error(status, message)
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, handler.ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, forum.ErrInvalidReference):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func eventFromRequest(r *http.Request) (handler.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return handler.Request{}, err
	}

	query := make(map[string]string, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	return handler.Request{
		Method:      r.Method,
		QueryParams: query,
		Headers:     headers,
		Body:        string(body),
		RequestContext: handler.RequestContext{
			RequestID: middleware.GetReqID(r.Context()),
		},
	}, nil
}

func writeResponse(w http.ResponseWriter, resp handler.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		log.Error().Err(err).Msg("transport: failed to write response")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("transport: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("transport: failed to write JSON response")
	}
}
