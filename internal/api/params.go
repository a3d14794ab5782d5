package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return v, true
}

func pageQuery(c *gin.Context) (limit, offset int, ok bool) {
	if limit, ok = intQuery(c, "limit", 0); !ok {
		return 0, 0, false
	}
	if offset, ok = intQuery(c, "offset", 0); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

// tagEventFilter reads the query string of GET /api/tags.
func tagEventFilter(c *gin.Context) (model.TagEventFilter, bool) {
	filter := model.TagEventFilter{CardUID: c.Query("card_uid")}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		ts, err := utils.ParseTimestamp(raw)
		if err != nil {
			badRequest(c, fmt.Sprintf("invalid %s: %v", name, err))
			return filter, false
		}
		*dst = &ts
	}

	if raw := c.Query("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, fmt.Sprintf("invalid processed %q", raw))
			return filter, false
		}
		filter.Processed = &processed
	}

	var ok bool
	if filter.Limit, filter.Offset, ok = pageQuery(c); !ok {
		return filter, false
	}
	return filter, true
}

// renderBodies returns webhook response bodies as embedded JSON where they
// parse, and as strings otherwise.
func renderBodies(bodies [][]byte) []interface{} {
	out := make([]interface{}, 0, len(bodies))
	for _, body := range bodies {
		if json.Valid(body) {
			out = append(out, json.RawMessage(body))
			continue
		}
		out = append(out, string(body))
	}
	return out
}
