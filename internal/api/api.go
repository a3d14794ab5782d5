// Package api exposes the tag logger over HTTP with gin.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/fanout"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// TagEventService records and reads scans.
type TagEventService interface {
	CreateEvent(ctx context.Context, input model.TagEventInput, sourceIPFallback string) (*model.TagEvent, error)
	GetEvent(ctx context.Context, id int64) (*model.TagEvent, error)
	QueryEvents(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error)
	SetProcessed(ctx context.Context, id int64, processed bool) (*model.TagEvent, error)
}

// WebhookService administers webhooks and their delivery state.
type WebhookService interface {
	Create(ctx context.Context, payload model.WebhookPayload) (*model.Webhook, error)
	Update(ctx context.Context, id int64, payload model.WebhookPayload) (*model.Webhook, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Webhook, error)
	List(ctx context.Context) ([]model.Webhook, error)
	ReplaceMappings(ctx context.Context, id int64, payload model.ReplaceMappingsPayload) ([]model.WebhookMapping, error)
	Logs(ctx context.Context, id int64, limit, offset int) ([]model.WebhookLog, error)
	RetryQueue(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error)
}

// SettingsService reads and writes runtime settings.
type SettingsService interface {
	List(ctx context.Context) ([]model.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// MaintenanceService prunes old data.
type MaintenanceService interface {
	Cleanup(ctx context.Context, payload model.CleanupPayload) (*model.CleanupResult, error)
}

// EventDispatcher runs a synchronous fan-out for one stored event.
type EventDispatcher interface {
	DispatchEvent(ctx context.Context, event *model.TagEvent) ([][]byte, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Events      TagEventService
	Webhooks    WebhookService
	Settings    SettingsService
	Maintenance MaintenanceService
	Dispatcher  EventDispatcher
	Trigger     fanout.Trigger
}

// API holds the handlers.
type API struct {
	deps   Deps
	logger *zap.Logger
}

// New creates the API.
func New(deps Deps, log *zap.Logger) *API {
	return &API{deps: deps, logger: log.Named("api")}
}

// Router builds the gin engine with middleware and every route registered.
func (a *API) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(RequestID(), Logger(a.logger), Recovery(a.logger), Metrics())

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "running"})
	})

	v := router.Group("/api")

	v.POST("/tags", a.CreateTagEvent)
	v.GET("/tags", a.QueryTagEvents)
	v.GET("/tags/:id", a.GetTagEvent)
	v.PATCH("/tags/:id/processed", a.SetTagEventProcessed)
	v.POST("/tags/:id/dispatch", a.DispatchTagEvent)

	v.GET("/webhooks", a.ListWebhooks)
	v.POST("/webhooks", a.CreateWebhook)
	v.GET("/webhooks/:id", a.GetWebhook)
	v.PUT("/webhooks/:id", a.UpdateWebhook)
	v.DELETE("/webhooks/:id", a.DeleteWebhook)
	v.PUT("/webhooks/:id/mappings", a.ReplaceWebhookMappings)
	v.GET("/webhooks/:id/logs", a.ListWebhookLogs)
	v.GET("/retry-queue", a.ListRetryQueue)

	v.GET("/settings", a.ListSettings)
	v.PUT("/settings/:key", a.UpdateSetting)

	v.POST("/maintenance/cleanup", a.Cleanup)

	return router
}
