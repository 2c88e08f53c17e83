package main

import (
	"net/http"

	"github.com/josh-kwaku/bankcards-api/api"
	"github.com/josh-kwaku/bankcards-api/internal/auth"
	"github.com/josh-kwaku/bankcards-api/internal/domain"
	"github.com/josh-kwaku/bankcards-api/internal/handler"
	"github.com/josh-kwaku/bankcards-api/internal/middleware"
	"github.com/josh-kwaku/bankcards-api/internal/repository"
)

type routes struct {
	tokens      *auth.Issuer
	idempotency *repository.IdempotencyRepository
	health      *handler.HealthHandler
	auth        *handler.AuthHandler
	users       *handler.UserHandler
	cardsAdmin  *handler.CardAdminHandler
	cardsUser   *handler.CardUserHandler
	// metrics is nil when the endpoint is disabled.
	metrics http.Handler
}

func (rt routes) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.health.Liveness)
	mux.HandleFunc("GET /health/ready", rt.health.Readiness)
	docs := handler.NewDocsHandler(api.OpenAPI)
	mux.HandleFunc("GET /docs", docs.UI)
	mux.HandleFunc("GET "+handler.SpecPath, docs.Spec)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}

	mux.HandleFunc("POST /auth/registration", rt.auth.Register)
	mux.HandleFunc("POST /auth/login", rt.auth.Login)

	authn := middleware.Auth(rt.tokens)
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, authn, middleware.RequireRole(domain.RoleAdmin))
	}
	user := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, authn, middleware.RequireRole(domain.RoleUser))
	}

	mux.Handle("POST /api/users", admin(rt.users.Create))
	mux.Handle("GET /api/users", admin(rt.users.List))
	mux.Handle("GET /api/users/{id}", admin(rt.users.GetByID))
	mux.Handle("PATCH /api/users/{id}", admin(rt.users.Update))
	mux.Handle("DELETE /api/users/{id}", admin(rt.users.Delete))

	mux.Handle("POST /api/cards/admin", admin(rt.cardsAdmin.Create))
	mux.Handle("GET /api/cards/admin", admin(rt.cardsAdmin.List))
	mux.Handle("PATCH /api/cards/admin/{id}/status", admin(rt.cardsAdmin.ChangeStatus))
	mux.Handle("DELETE /api/cards/admin/{id}", admin(rt.cardsAdmin.Delete))
	mux.Handle("GET /api/cards/admin/transfers", admin(rt.cardsAdmin.Transfers))
	mux.Handle("GET /api/cards/admin/transfers/users/{userId}", admin(rt.cardsAdmin.UserTransfers))
	mux.Handle("GET /api/cards/admin/block-requests", admin(rt.cardsAdmin.PendingBlockRequests))
	mux.Handle("POST /api/cards/admin/block-requests/{id}/process", admin(rt.cardsAdmin.ProcessBlockRequest))

	mux.Handle("GET /api/cards/user", user(rt.cardsUser.List))
	mux.Handle("GET /api/cards/user/transfers", user(rt.cardsUser.Transfers))
	mux.Handle("GET /api/cards/user/{id}", user(rt.cardsUser.Get))
	mux.Handle("GET /api/cards/user/{id}/balance", user(rt.cardsUser.Balance))
	mux.Handle("POST /api/cards/user/{id}/block-request", user(rt.cardsUser.RequestBlock))

	transfer := middleware.Chain(http.HandlerFunc(rt.cardsUser.Transfer),
		authn,
		middleware.RequireRole(domain.RoleUser),
		middleware.Idempotency(rt.idempotency),
	)
	mux.Handle("POST /api/cards/user/transfer", transfer)
	mux.Handle("POST /transfer", transfer)

	return middleware.Chain(mux, middleware.Tracing, middleware.Logging, middleware.Recovery)
}
