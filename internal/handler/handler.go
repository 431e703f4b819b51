package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/forum-service/internal/db"
	"github.com/vasiliy-maslov/forum-service/internal/forum"
	"github.com/vasiliy-maslov/forum-service/internal/user"
)

// Services are the domain services bound to the connection of one request.
type Services struct {
	Users user.Service
	Forum forum.Service
}

type ServicesFactory func(q db.Querier) Services

// NewServicesFactory wires the Postgres repositories into the services.
func NewServicesFactory(opts user.Options) ServicesFactory {
	return func(q db.Querier) Services {
		return Services{
			Users: user.NewService(user.NewRepository(q), opts),
			Forum: forum.NewService(forum.NewRepository(q)),
		}
	}
}

type route struct {
	method string
	path   string
}

type operation func(ctx context.Context, svc Services, req Request) (Response, error)

// ForumHandler routes a Request by (method, path) to one forum operation.
type ForumHandler struct {
	store       db.Acquirer
	newServices ServicesFactory
	routes      map[route]operation
}

func NewForumHandler(store db.Acquirer, newServices ServicesFactory) *ForumHandler {
	return &ForumHandler{
		store:       store,
		newServices: newServices,
		routes: map[route]operation{
			{http.MethodGet, "categories"}:     listCategories,
			{http.MethodGet, "topics"}:         listTopics,
			{http.MethodGet, "users"}:          getUser,
			{http.MethodPost, "register"}:      register,
			{http.MethodPost, "login"}:         login,
			{http.MethodPost, "topics"}:        createTopic,
			{http.MethodPost, "categories"}:    createCategory,
			{http.MethodPut, "users/role"}:     updateUserRole,
			{http.MethodPut, "topics/pin"}:     pinTopic,
			{http.MethodPut, "topics/lock"}:    lockTopic,
			{http.MethodPut, "topics/archive"}: archiveTopic,
		},
	}
}

// Handle serves one request. OPTIONS is answered without touching the
// database; everything else runs on a single pooled connection that is
// released before Handle returns. Errors from the database or from decoding
// the body are returned to the caller unconverted.
func (h *ForumHandler) Handle(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	if method == http.MethodOptions {
		return Preflight(), nil
	}

	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.Must(uuid.NewV4()).String()
	}
	logger := log.With().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", req.Path()).
		Logger()

	if method == http.MethodPost || method == http.MethodPut {
		if actor := req.Header(HeaderUserID); actor != "" {
			logger = logger.With().Str("actor", actor).Logger()
		}
	}

	started := time.Now()

	conn, err := h.store.Acquire(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("handler: failed to acquire database connection")
		return Response{}, err
	}
	defer conn.Release()

	op, ok := h.routes[route{method: method, path: req.Path()}]
	if !ok {
		logger.Warn().Int("status", http.StatusNotFound).Msg("handler: endpoint not found")
		return Error(http.StatusNotFound, "Endpoint not found"), nil
	}

	resp, err := op(ctx, h.newServices(conn), req)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("handler: operation failed")
		return Response{}, err
	}

	logger.Info().Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).Msg("handler: request served")
	return resp, nil
}
