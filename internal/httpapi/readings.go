package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"humidity-monitor/internal/mirror"
	"humidity-monitor/internal/utils"
)

const monthLayout = "2006-01"

// DocumentReader reads back a mirrored partition document.
type DocumentReader interface {
	Get(ctx context.Context, collection, key string) (map[string]mirror.Entry, error)
}

// Readings serves mirrored samples for one station. Now defaults to time.Now.
type Readings struct {
	Docs     DocumentReader
	Site     string
	Location string
	Now      func() time.Time
}

type readingsResponse struct {
	Site      string                  `json:"site"`
	Location  string                  `json:"location"`
	Partition string                  `json:"partition"`
	Entries   map[string]mirror.Entry `json:"entries"`
}

func (rd *Readings) handleReadings(w http.ResponseWriter, r *http.Request) {
	month, err := rd.parseMonth(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid 'month' (expected YYYY-MM)")
		return
	}

	key := mirror.PartitionKey(rd.Location, month)
	entries, err := rd.Docs.Get(r.Context(), rd.Site, key)
	if err != nil {
		slog.Error("readings: get partition failed", "partition", key, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if entries == nil {
		utils.WriteError(w, http.StatusNotFound, "no readings for "+month.Format(monthLayout))
		return
	}

	utils.WriteJSON(w, http.StatusOK, readingsResponse{
		Site:      rd.Site,
		Location:  rd.Location,
		Partition: key,
		Entries:   entries,
	})
}

func (rd *Readings) parseMonth(r *http.Request) (time.Time, error) {
	s := r.URL.Query().Get("month")
	if s == "" {
		now := time.Now
		if rd.Now != nil {
			now = rd.Now
		}
		return now(), nil
	}
	return time.ParseInLocation(monthLayout, s, time.Local)
}

func registerReadings(mux *http.ServeMux, rd *Readings) {
	mux.HandleFunc("GET /api/v1/readings", rd.handleReadings)
}
