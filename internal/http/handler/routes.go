package handler

import (
	"github.com/gofiber/fiber/v2"

	"docpreview/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// db may be nil when the catalog is not backed by a database.
func RegisterRoutes(app *fiber.App, db Pinger, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/", UploadDocument(docSvc))
	docs.Get("/versions/:name", ListVersions(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Get("/:id/preview", PreviewDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
	docs.Get("/:id/url", PresignDocumentURL(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
}
