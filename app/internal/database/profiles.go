package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Profile filter types.
const (
	FilterAll       = "all"
	FilterWhitelist = "whitelist"
	FilterBlacklist = "blacklist"
)

// Profile is a notification subscription: which entities a recipient
// cares about and where status changes are delivered.
type Profile struct {
	ID         string
	Name       string
	FilterType string
	Entities   []string
	WebhookURL string
	Enabled    bool
	CreatedAt  time.Time
}

// SaveProfile inserts or updates a profile. A missing id is generated.
func (s *Store) SaveProfile(p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.FilterType == "" {
		p.FilterType = FilterAll
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	entities, err := json.Marshal(p.Entities)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO notification_profiles
		(id, name, filter_type, entity_list, webhook_url, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, filter_type=excluded.filter_type,
			entity_list=excluded.entity_list, webhook_url=excluded.webhook_url,
			enabled=excluded.enabled`,
		p.ID, p.Name, p.FilterType, string(entities), p.WebhookURL,
		boolToInt(p.Enabled), formatTS(p.CreatedAt))
	return err
}

// Profiles returns all enabled notification profiles.
func (s *Store) Profiles() ([]Profile, error) {
	rows, err := s.db.Query(`SELECT id, name, filter_type, entity_list,
		webhook_url, enabled, created_at
		FROM notification_profiles WHERE enabled = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		var entities, createdAt string
		var enabled int
		if err := rows.Scan(&p.ID, &p.Name, &p.FilterType, &entities,
			&p.WebhookURL, &enabled, &createdAt); err != nil {
			return nil, err
		}
		p.Enabled = enabled != 0
		if err := json.Unmarshal([]byte(entities), &p.Entities); err != nil {
			p.Entities = nil
		}
		if at, err := parseTS(createdAt); err == nil {
			p.CreatedAt = at
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile by id.
func (s *Store) DeleteProfile(id string) error {
	_, err := s.db.Exec(`DELETE FROM notification_profiles WHERE id = ?`, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
