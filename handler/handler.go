// Package handler exposes the routing data store to the message-dispatch
// engine over API Gateway.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"handoff-router/internal/domain"
)

// RoutingStore is the store contract the handler depends on.
type RoutingStore interface {
	GetUsers(ctx context.Context) ([]domain.ConversationReference, error)
	GetBotInstances(ctx context.Context) ([]domain.ConversationReference, error)
	GetAggregationChannels(ctx context.Context) ([]domain.ConversationReference, error)
	GetConnectionRequests(ctx context.Context) ([]domain.ConnectionRequest, error)
	GetConnections(ctx context.Context) ([]domain.Connection, error)

	AddConversationReference(ctx context.Context, ref domain.ConversationReference) bool
	RemoveConversationReference(ctx context.Context, ref domain.ConversationReference) bool
	AddAggregationChannel(ctx context.Context, ref domain.ConversationReference) bool
	RemoveAggregationChannel(ctx context.Context, ref domain.ConversationReference) bool
	AddConnectionRequest(ctx context.Context, req domain.ConnectionRequest) bool
	RemoveConnectionRequest(ctx context.Context, req domain.ConnectionRequest) bool
	AddConnection(ctx context.Context, conn domain.Connection) bool
	RemoveConnection(ctx context.Context, conn domain.Connection) bool
}

type Handler struct {
	store  RoutingStore
	logger *slog.Logger
}

func NewHandler(store RoutingStore) (*Handler, error) {
	if store == nil {
		return nil, errors.New("handler: store must not be nil")
	}
	return &Handler{
		store:  store,
		logger: slog.Default().With("component", "handler"),
	}, nil
}

type mutationResult struct {
	OK bool `json:"ok"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Handle routes an API Gateway proxy request to the matching store
// operation. Mutations report the store's boolean as {"ok": ...} with a 200
// status; only undecodable input and scan failures map to error statuses.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := uuid.NewString()
	logger := h.logger.With("requestId", requestID, "method", req.HTTPMethod, "path", req.Path)

	resp := h.route(ctx, logger, req)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["content-type"] = "application/json"
	resp.Headers["x-request-id"] = requestID
	return resp, nil
}

func (h *Handler) route(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	switch req.Path {
	case "/routing/users":
		if req.HTTPMethod != http.MethodGet {
			return respondError(http.StatusMethodNotAllowed, "method not allowed")
		}
		return list(logger, func() (any, error) { return h.store.GetUsers(ctx) })
	case "/routing/bot-instances":
		if req.HTTPMethod != http.MethodGet {
			return respondError(http.StatusMethodNotAllowed, "method not allowed")
		}
		return list(logger, func() (any, error) { return h.store.GetBotInstances(ctx) })
	case "/routing/references":
		return mutate(ctx, logger, req, h.store.AddConversationReference, h.store.RemoveConversationReference)
	case "/routing/aggregations":
		if req.HTTPMethod == http.MethodGet {
			return list(logger, func() (any, error) { return h.store.GetAggregationChannels(ctx) })
		}
		return mutate(ctx, logger, req, h.store.AddAggregationChannel, h.store.RemoveAggregationChannel)
	case "/routing/requests":
		if req.HTTPMethod == http.MethodGet {
			return list(logger, func() (any, error) { return h.store.GetConnectionRequests(ctx) })
		}
		return mutate(ctx, logger, req, h.store.AddConnectionRequest, h.store.RemoveConnectionRequest)
	case "/routing/connections":
		if req.HTTPMethod == http.MethodGet {
			return list(logger, func() (any, error) { return h.store.GetConnections(ctx) })
		}
		return mutate(ctx, logger, req, h.store.AddConnection, h.store.RemoveConnection)
	default:
		return respondError(http.StatusNotFound, "unknown route")
	}
}

func list(logger *slog.Logger, get func() (any, error)) events.APIGatewayProxyResponse {
	entities, err := get()
	if err != nil {
		logger.Error("listing failed", "err", err)
		return respondError(http.StatusInternalServerError, "listing failed")
	}
	return respondJSON(http.StatusOK, entities)
}

// mutate decodes the request body into T and dispatches to add or remove
// depending on the HTTP method.
func mutate[T any](ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest, add, remove func(context.Context, T) bool) events.APIGatewayProxyResponse {
	var op func(context.Context, T) bool
	switch req.HTTPMethod {
	case http.MethodPost:
		op = add
	case http.MethodDelete:
		op = remove
	default:
		return respondError(http.StatusMethodNotAllowed, "method not allowed")
	}

	var entity T
	if err := json.Unmarshal([]byte(req.Body), &entity); err != nil {
		logger.Warn("undecodable request body", "err", err)
		return respondError(http.StatusBadRequest, "undecodable request body")
	}
	return respondJSON(http.StatusOK, mutationResult{OK: op(ctx, entity)})
}

func respondJSON(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return respondError(http.StatusInternalServerError, "response encoding failed")
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(data)}
}

func respondError(status int, msg string) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(errorBody{Error: msg})
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(data)}
}
