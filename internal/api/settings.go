package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// ListSettings returns every stored setting.
func (a *API) ListSettings(c *gin.Context) {
	settings, err := a.deps.Settings.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSetting upserts one key.
func (a *API) UpdateSetting(c *gin.Context) {
	key := c.Param("key")
	var payload model.SettingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid setting payload: "+err.Error())
		return
	}
	if err := a.deps.Settings.Set(c.Request.Context(), key, payload.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Setting{Key: key, Value: payload.Value, UpdatedAt: utils.Now()})
}

// Cleanup deletes events and delivery logs older than the requested age.
func (a *API) Cleanup(c *gin.Context) {
	var payload model.CleanupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid cleanup payload: "+err.Error())
		return
	}
	result, err := a.deps.Maintenance.Cleanup(c.Request.Context(), payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
