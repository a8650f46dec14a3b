package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cimon/app/internal/database"
)

// sourceTimeLayout is the timestamp format of the upstream status feed.
const sourceTimeLayout = "2006-01-02T15:04:05.000Z"

// sourceItem is one entity entry in the upstream feed.
type sourceItem struct {
	CI           string `json:"ci"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Product      string `json:"product"`
	BU           string `json:"bu"`
	TID          string `json:"tid"`
	PDT          string `json:"pdt"`
	Comment      string `json:"comment"`
	Availability int    `json:"availability"`
	Time         string `json:"time"`
}

// Fetcher pulls the current availability snapshot of all entities from
// the upstream status source.
type Fetcher struct {
	URL    string
	Client *http.Client
	Log    zerolog.Logger
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(url string, timeout time.Duration, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

// Fetch retrieves and parses the feed into a sample batch plus the
// matching metadata batch. Items with an unparsable timestamp or an
// empty id are dropped with a warning.
func (f *Fetcher) Fetch(ctx context.Context) ([]database.SampleWrite, []database.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: unexpected status %d", f.URL, resp.StatusCode)
	}

	var items []sourceItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, nil, fmt.Errorf("decode feed: %w", err)
	}

	samples := make([]database.SampleWrite, 0, len(items))
	meta := make([]database.Metadata, 0, len(items))
	for _, it := range items {
		if it.CI == "" {
			f.Log.Warn().Msg("feed item without ci id dropped")
			continue
		}
		at, err := time.Parse(sourceTimeLayout, it.Time)
		if err != nil {
			f.Log.Warn().Str("ci", it.CI).Str("time", it.Time).Msg("feed item with bad timestamp dropped")
			continue
		}
		status := 0
		if it.Availability != 0 {
			status = 1
		}

		samples = append(samples, database.SampleWrite{
			Entity: it.CI,
			At:     at,
			Status: status,
		})
		meta = append(meta, database.Metadata{
			Entity:       it.CI,
			Name:         it.Name,
			Organization: it.Organization,
			Product:      it.Product,
			BU:           it.BU,
			TID:          it.TID,
			PDT:          it.PDT,
			Comment:      it.Comment,
		})
	}

	return samples, meta, nil
}

// Run performs one ingestion pass: fetch the feed and write samples and
// metadata to the store.
func (f *Fetcher) Run(ctx context.Context, store *database.Store) error {
	samples, meta, err := f.Fetch(ctx)
	if err != nil {
		return err
	}

	written, err := store.InsertSamples(samples)
	if err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	if err := store.UpsertMetadata(meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	f.Log.Info().
		Int("fetched", len(samples)).
		Int64("written", written).
		Msg("ingested samples")
	return nil
}
