package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"cimon/app/internal/database"
)

// Dispatcher delivers availability-change notifications to subscribed
// profiles. It compares each entity's current status against its
// last-known status and fans the relevant changes out per profile.
type Dispatcher struct {
	Store  *database.Store
	Client *http.Client
	Log    zerolog.Logger
}

// NewDispatcher creates a dispatcher with a delivery timeout.
func NewDispatcher(store *database.Store, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Store:  store,
		Client: &http.Client{Timeout: 10 * time.Second},
		Log:    log,
	}
}

// change is one serialized status transition in a webhook payload.
type change struct {
	Entity       string `json:"ci"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	From         int    `json:"from"`
	To           int    `json:"to"`
	Direction    string `json:"direction"` // "down" or "up"
	At           string `json:"at"`
}

// Dispatch runs one notification pass and returns the number of
// profiles processed. A delivery failure for one profile is logged and
// does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	profiles, err := d.Store.Profiles()
	if err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	transitions, err := d.Store.StatusChanges()
	if err != nil {
		return 0, fmt.Errorf("load status changes: %w", err)
	}
	if len(transitions) == 0 {
		return len(profiles), nil
	}

	// Outages first, recoveries after, stable order within each group.
	sort.SliceStable(transitions, func(i, j int) bool {
		if transitions[i].To != transitions[j].To {
			return transitions[i].To < transitions[j].To
		}
		return transitions[i].Entity < transitions[j].Entity
	})

	processed := 0
	for _, p := range profiles {
		relevant := filterChanges(transitions, p)
		if len(relevant) > 0 {
			if err := d.deliver(ctx, p, relevant); err != nil {
				d.Log.Error().Err(err).
					Str("profile", p.ID).
					Str("profile_name", p.Name).
					Msg("notification delivery failed")
			} else {
				d.Log.Info().
					Str("profile", p.ID).
					Int("changes", len(relevant)).
					Msg("notification sent")
			}
		}
		processed++
	}

	return processed, nil
}

// filterChanges applies a profile's whitelist/blacklist to the change
// set.
func filterChanges(transitions []database.StatusChange, p database.Profile) []change {
	listed := make(map[string]bool, len(p.Entities))
	for _, e := range p.Entities {
		listed[e] = true
	}

	var out []change
	for _, t := range transitions {
		switch p.FilterType {
		case database.FilterWhitelist:
			if !listed[t.Entity] {
				continue
			}
		case database.FilterBlacklist:
			if listed[t.Entity] {
				continue
			}
		}

		direction := "up"
		if t.To == 0 {
			direction = "down"
		}
		out = append(out, change{
			Entity:       t.Entity,
			Name:         t.Name,
			Organization: t.Organization,
			From:         t.From,
			To:           t.To,
			Direction:    direction,
			At:           t.At.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// deliver posts one JSON payload with all of a profile's relevant
// changes to its webhook.
func (d *Dispatcher) deliver(ctx context.Context, p database.Profile, changes []change) error {
	payload := map[string]any{
		"event":        "availability_change",
		"profile":      p.Name,
		"change_count": len(changes),
		"changes":      changes,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cimon/1.0")

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
