package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/application/usecase"
	"github.com/jhoicas/facturacion-sifen/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Billing         *billing.Service
	KuDE            *billing.KuDEUseCase
	Allocator       *numbering.Allocator
	AuthorizationUC *usecase.AuthorizationUseCase
	JWTSecret       string
	Log             zerolog.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log.With().Str("component", "http").Logger()
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleEmisor, jwt.RoleOperador)
	issuers := RequireRole(jwt.RoleAdmin, jwt.RoleEmisor)
	operators := RequireRole(jwt.RoleAdmin, jwt.RoleOperador)
	admins := RequireRole(jwt.RoleAdmin)

	// Documentos
	documents := api.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Billing, deps.KuDE, log)
	documents.Post("/", issuers, documentHandler.Create)
	documents.Get("/:id", anyRole, documentHandler.GetByID)
	documents.Put("/:id", issuers, documentHandler.Update)
	documents.Post("/:id/sign", issuers, documentHandler.Sign)
	documents.Post("/:id/void", issuers, documentHandler.Void)
	documents.Post("/:id/void-with-credit", issuers, documentHandler.VoidWithCredit)
	documents.Post("/:id/notes", issuers, documentHandler.CreateNote)
	documents.Get("/:id/kude", anyRole, documentHandler.KuDE)

	// Talonario
	numberingGroup := api.Group("/numbering")
	numberingHandler := NewNumberingHandler(deps.Allocator, log)
	numberingGroup.Post("/ranges", admins, numberingHandler.GenerateRange)
	numberingGroup.Get("/pool", anyRole, numberingHandler.PoolStatus)

	// Lotes
	batches := api.Group("/batches", operators)
	batchHandler := NewBatchHandler(deps.Billing, log)
	batches.Post("/submit", batchHandler.Submit)
	batches.Post("/reset-stuck", batchHandler.ResetStuck)
	batches.Get("/pending", batchHandler.Pending)
	batches.Post("/:id/poll", batchHandler.Poll)
	batches.Post("/:id/results", batchHandler.Results)

	// Timbrados (administrativo)
	authorizations := api.Group("/authorizations", admins)
	authorizationHandler := NewAuthorizationHandler(deps.AuthorizationUC, log)
	authorizations.Post("/", authorizationHandler.Create)
	scoped := RequireAuthorizationScope("id")
	authorizations.Get("/:id", scoped, authorizationHandler.GetByID)
	authorizations.Post("/:id/deactivate", scoped, authorizationHandler.Deactivate)
	authorizations.Post("/:id/establishments", scoped, authorizationHandler.AddEstablishment)
	authorizations.Get("/:id/establishments", scoped, authorizationHandler.ListEstablishments)
}
