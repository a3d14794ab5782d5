package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/requestctx"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// CreateTagEvent records a scan. A throttled scan answers 200 with
// {"throttled": true}; a stored one answers 201 and starts fan-out.
func (a *API) CreateTagEvent(c *gin.Context) {
	var input model.TagEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid tag event payload: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	event, err := a.deps.Events.CreateEvent(ctx, input, requestctx.SourceIP(ctx))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"throttled": true})
		return
	}

	// Fan-out never fails the registration.
	if a.deps.Trigger != nil {
		if err := a.deps.Trigger.Trigger(ctx, event); err != nil {
			logger.FromContext(ctx).Warn("Fan-out trigger failed", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, event)
}

// QueryTagEvents lists events, newest first.
func (a *API) QueryTagEvents(c *gin.Context) {
	filter, ok := tagEventFilter(c)
	if !ok {
		return
	}
	events, err := a.deps.Events.QueryEvents(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetTagEvent returns one event.
func (a *API) GetTagEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	event, err := a.deps.Events.GetEvent(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// SetTagEventProcessed sets processed_flag.
func (a *API) SetTagEventProcessed(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload model.SetProcessedPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Processed == nil {
		badRequest(c, `body must be {"processed": true|false}`)
		return
	}
	event, err := a.deps.Events.SetProcessed(c.Request.Context(), id, *payload.Processed)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// DispatchTagEvent fans a stored event out and waits for every delivery.
func (a *API) DispatchTagEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	event, err := a.deps.Events.GetEvent(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	bodies, err := a.deps.Dispatcher.DispatchEvent(ctx, event)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id": event.ID,
		"results":  renderBodies(bodies),
	})
}
