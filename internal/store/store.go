package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/schedule"
)

// Section is one independently editable part of the settings.
type Section string

const (
	Temperature Section = "temperature"
	Depth       Section = "depth"
	Lighting    Section = "lighting"
	Doser       Section = "doser"
)

var Sections = []Section{Temperature, Depth, Lighting, Doser}

var ErrUnknownSection = errors.New("unknown settings section")

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	section    TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
)`

// Store keeps the tank settings in sqlite, one JSON row per section.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite has one writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Seed writes defaults for every section that has never been stored.
func (s *Store) Seed(defaults model.Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, sec := range Sections {
		body, err := marshalSection(defaults, sec)
		if err != nil {
			return err
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO settings (section, body, updated_at) VALUES (?, ?, ?)`, string(sec), body, now)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", sec, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Info().Str("section", string(sec)).Msg("Seeded default settings")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}

// Load returns the stored settings. Sections that were never stored keep
// their defaults.
func (s *Store) Load() (model.Settings, error) {
	settings := model.DefaultSettings()

	rows, err := s.db.Query(`SELECT section, body FROM settings`)
	if err != nil {
		return settings, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sec, body string
		if err := rows.Scan(&sec, &body); err != nil {
			return settings, fmt.Errorf("failed to scan settings: %w", err)
		}
		cmd, err := Decode(Section(sec), []byte(body))
		if err != nil {
			return settings, err
		}
		mergeCommand(&settings, cmd)
	}
	return settings, rows.Err()
}

// Get returns the raw JSON body of a section and its version.
func (s *Store) Get(sec Section) (json.RawMessage, int64, error) {
	var body string
	var version int64
	err := s.db.QueryRow(`SELECT body, version FROM settings WHERE section = ?`, string(sec)).Scan(&body, &version)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get %s settings: %w", sec, err)
	}
	return json.RawMessage(body), version, nil
}

// Versions reports the current version of every stored section.
func (s *Store) Versions() (map[Section]int64, error) {
	rows, err := s.db.Query(`SELECT section, version FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query setting versions: %w", err)
	}
	defer rows.Close()

	versions := map[Section]int64{}
	for rows.Next() {
		var sec string
		var v int64
		if err := rows.Scan(&sec, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting version: %w", err)
		}
		versions[Section(sec)] = v
	}
	return versions, rows.Err()
}

// Set validates body against the section's type and stores it, bumping the
// section's version so watchers pick it up.
func (s *Store) Set(sec Section, body []byte) error {
	cmd, err := Decode(sec, body)
	if err != nil {
		return err
	}
	var settings model.Settings
	mergeCommand(&settings, cmd)
	normalized, err := marshalSection(settings, sec)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO settings (section, body, version, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(section) DO UPDATE SET
			body = excluded.body,
			version = settings.version + 1,
			updated_at = excluded.updated_at`,
		string(sec), normalized, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update %s settings: %w", sec, err)
	}
	return tx.Commit()
}

// Save stores every section of settings.
func (s *Store) Save(settings model.Settings) error {
	for _, sec := range Sections {
		body, err := marshalSection(settings, sec)
		if err != nil {
			return err
		}
		if err := s.Set(sec, []byte(body)); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses and validates a section body into a command that carries
// just that section.
func Decode(sec Section, body []byte) (model.Command, error) {
	var cmd model.Command
	var err error

	switch sec {
	case Temperature:
		var v model.TemperatureSettings
		if err = json.Unmarshal(body, &v); err == nil {
			cmd.Temperature = &v
		}
	case Depth:
		var v model.DepthSettings
		if err = json.Unmarshal(body, &v); err == nil {
			err = v.Validate()
			cmd.Depth = &v
		}
	case Lighting:
		var v schedule.Schedule
		if err = json.Unmarshal(body, &v); err == nil {
			err = v.Validate()
			cmd.Lighting = &v
		}
	case Doser:
		var v model.DoserSettings
		if err = json.Unmarshal(body, &v); err == nil {
			err = v.Validate()
			cmd.Doser = &v
		}
	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}

	if err != nil {
		return model.Command{}, fmt.Errorf("invalid %s settings: %w", sec, err)
	}
	return cmd, nil
}

func marshalSection(settings model.Settings, sec Section) (string, error) {
	var v any
	switch sec {
	case Temperature:
		v = settings.Temperature
	case Depth:
		v = settings.Depth
	case Lighting:
		v = settings.Lighting
	case Doser:
		v = settings.Doser
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s settings: %w", sec, err)
	}
	return string(b), nil
}

func mergeCommand(settings *model.Settings, cmd model.Command) {
	if cmd.Temperature != nil {
		settings.Temperature = *cmd.Temperature
	}
	if cmd.Depth != nil {
		settings.Depth = *cmd.Depth
	}
	if cmd.Lighting != nil {
		settings.Lighting = *cmd.Lighting
	}
	if cmd.Doser != nil {
		settings.Doser = *cmd.Doser
	}
}
