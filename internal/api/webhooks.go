package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// ListWebhooks returns all webhooks.
func (a *API) ListWebhooks(c *gin.Context) {
	webhooks, err := a.deps.Webhooks.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, webhooks)
}

// CreateWebhook registers a webhook with optional mappings.
func (a *API) CreateWebhook(c *gin.Context) {
	var payload model.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid webhook payload: "+err.Error())
		return
	}
	webhook, err := a.deps.Webhooks.Create(c.Request.Context(), payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, webhook)
}

// GetWebhook returns one webhook with its mappings.
func (a *API) GetWebhook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	webhook, err := a.deps.Webhooks.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, webhook)
}

// UpdateWebhook replaces a webhook's attributes.
func (a *API) UpdateWebhook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload model.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid webhook payload: "+err.Error())
		return
	}
	webhook, err := a.deps.Webhooks.Update(c.Request.Context(), id, payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, webhook)
}

// DeleteWebhook removes a webhook.
func (a *API) DeleteWebhook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.deps.Webhooks.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReplaceWebhookMappings swaps the mapping set of a webhook.
func (a *API) ReplaceWebhookMappings(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload model.ReplaceMappingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid mappings payload: "+err.Error())
		return
	}
	mappings, err := a.deps.Webhooks.ReplaceMappings(c.Request.Context(), id, payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, mappings)
}

// ListWebhookLogs pages through a webhook's delivery log.
func (a *API) ListWebhookLogs(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}
	logs, err := a.deps.Webhooks.Logs(c.Request.Context(), id, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListRetryQueue pages through queued redeliveries.
func (a *API) ListRetryQueue(c *gin.Context) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}
	items, err := a.deps.Webhooks.RetryQueue(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
