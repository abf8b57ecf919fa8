package schedule

import (
	"net/http"
	"strings"
	"time"

	"github.com/aiox-platform/companion/internal/api"
)

// Handler exposes the schedule over HTTP.
type Handler struct {
	provider *Provider
	now      func() time.Time
}

// NewHandler creates a new schedule handler.
func NewHandler(provider *Provider) *Handler {
	return &Handler{provider: provider, now: time.Now}
}

// EntryView is one schedule slot.
type EntryView struct {
	Range    string `json:"range"`
	Activity string `json:"activity"`
}

// ActivityResponse is the body of GET /activity.
type ActivityResponse struct {
	Weekday  string      `json:"weekday"`
	Time     string      `json:"time"`
	Activity string      `json:"activity,omitempty"`
	Active   bool        `json:"active"`
	Day      []EntryView `json:"day"`
}

// Activity returns the current activity and the full day's schedule. The
// optional ?day= query selects another weekday's listing.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.provider.Location())
	day := WeekdayOf(now.Weekday())

	if q := strings.TrimSpace(r.URL.Query().Get("day")); q != "" {
		parsed, err := parseWeekday(q)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("day must be a weekday name"))
			return
		}
		day = parsed
	}

	activity, ok := h.provider.CurrentActivity(now)
	resp := ActivityResponse{
		Weekday:  WeekdayOf(now.Weekday()).String(),
		Time:     now.Format("15:04:05"),
		Activity: activity,
		Active:   ok,
		Day:      []EntryView{},
	}
	for _, e := range h.provider.Table().Day(day) {
		resp.Day = append(resp.Day, EntryView{Range: e.Range.String(), Activity: e.Activity})
	}

	api.JSON(w, http.StatusOK, resp)
}
