// Package mirror copies samples into a remote document store, one document
// per location and calendar month.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"humidity-monitor/internal/types"
)

// Entry is the value stored under a timestamp key.
type Entry struct {
	T  int `json:"t" firestore:"t"`
	RH int `json:"rh" firestore:"rh"`
}

// Document is a resolved handle on one remote document.
type Document interface {
	// Merge adds or updates the given keys and leaves every other key untouched.
	Merge(ctx context.Context, fields map[string]Entry) error
}

// Store resolves document handles inside a collection.
type Store interface {
	Document(collection, key string) (Document, error)
}

// PartitionKey names the document a sample at ts belongs to, e.g.
// "greenhouse-2024-01". The month is taken from ts's own location.
func PartitionKey(location string, ts time.Time) string {
	return location + "-" + ts.Format("2006-01")
}

// partition caches the document handle for the month currently being written.
type partition struct {
	key string
	doc Document
}

type Mirror struct {
	store    Store
	site     string
	location string
	current  partition
	logger   *slog.Logger
}

// New returns a Mirror writing into collection site. A nil store yields a
// disabled Mirror whose Upsert does nothing.
func New(store Store, site, location string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, site: site, location: location, logger: logger}
}

func (m *Mirror) Enabled() bool {
	return m != nil && m.store != nil
}

// Upsert merges the sample into its monthly document, resolving a new handle
// only when the month changes.
func (m *Mirror) Upsert(ctx context.Context, s types.Sample) error {
	if !m.Enabled() {
		return nil
	}

	key := PartitionKey(m.location, s.Timestamp)
	if key != m.current.key || m.current.doc == nil {
		doc, err := m.store.Document(m.site, key)
		if err != nil {
			return fmt.Errorf("resolve document %s/%s: %w", m.site, key, err)
		}
		m.current = partition{key: key, doc: doc}
		m.logger.Info("mirror partition selected", "collection", m.site, "document", key)
	}

	fields := map[string]Entry{
		s.TimestampString(): {T: s.TemperatureF, RH: s.HumidityPct},
	}
	if err := m.current.doc.Merge(ctx, fields); err != nil {
		return fmt.Errorf("merge into %s/%s: %w", m.site, key, err)
	}
	return nil
}
