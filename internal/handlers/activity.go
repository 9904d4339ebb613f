package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/activity"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

// ActivityHandler serves the activity log. Reading and exporting the log are
// themselves recorded.
type ActivityHandler struct {
	recorder *activity.Recorder
	now      func() time.Time
}

func NewActivityHandler(recorder *activity.Recorder) *ActivityHandler {
	return &ActivityHandler{recorder: recorder, now: time.Now}
}

// GET /api/activity-logs
func (h *ActivityHandler) List(c *gin.Context) {
	filters, err := parseActivityFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := requestContext(c)
	page, err := h.recorder.List(ctx, activity.ListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 0),
		Filters:  filters,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.recorder.Record(ctx, activity.EntryFromContext(ctx, "activity.logs_viewed", "activity_log", "", filterDetails(filters, map[string]any{
		"page": page.Page,
	})))

	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.NewMeta(page.Page, page.PageSize, page.Total))
}

// GET /api/activity-logs/export
func (h *ActivityHandler) Export(c *gin.Context) {
	filters, err := parseActivityFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := requestContext(c)
	views, err := h.recorder.Export(ctx, filters)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := activity.WriteCSV(&buf, views); err != nil {
		respondError(c, err)
		return
	}

	h.recorder.Record(ctx, activity.EntryFromContext(ctx, "activity.logs_exported", "activity_log", "", filterDetails(filters, map[string]any{
		"rows": len(views),
	})))

	c.Header("Content-Disposition", `attachment; filename="`+activity.ExportFilename(h.now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func parseActivityFilters(c *gin.Context) (activity.Filters, error) {
	filters := activity.Filters{
		UserID:       strings.TrimSpace(c.Query("user_id")),
		Action:       strings.TrimSpace(c.Query("action")),
		ResourceType: strings.TrimSpace(c.Query("resource_type")),
	}

	from, err := parseTimeQuery(c, "from", false)
	if err != nil {
		return activity.Filters{}, err
	}
	to, err := parseTimeQuery(c, "to", true)
	if err != nil {
		return activity.Filters{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return activity.Filters{}, apperrors.NewBadRequest("to must not be before from")
	}
	filters.From = from
	filters.To = to
	return filters, nil
}

// parseTimeQuery accepts RFC3339 timestamps or YYYY-MM-DD dates. A bare date
// used as an upper bound covers the whole day.
func parseTimeQuery(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, apperrors.NewBadRequest(key + " must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

func filterDetails(filters activity.Filters, details map[string]any) map[string]any {
	if filters.UserID != "" {
		details["user_id"] = filters.UserID
	}
	if filters.Action != "" {
		details["action"] = filters.Action
	}
	if filters.ResourceType != "" {
		details["resource_type"] = filters.ResourceType
	}
	if filters.From != nil {
		details["from"] = filters.From.UTC().Format(time.RFC3339)
	}
	if filters.To != nil {
		details["to"] = filters.To.UTC().Format(time.RFC3339)
	}
	return details
}
