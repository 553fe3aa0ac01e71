package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Get(ctx context.Context, username, serverURL string) (Preferences, error)
	Store(ctx context.Context, prefs Preferences) (Preferences, error)
	TouchLogin(ctx context.Context, username, serverURL string, at time.Time) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Get(ctx context.Context, username, serverURL string) (Preferences, error) {
	query := `SELECT username, server_url, server_type, selected_calendars, calendar_colors, default_calendar,
				week_start, default_view, timezone, created_at, updated_at, last_login
				FROM user_preferences WHERE username = $1 AND server_url = $2`

	var prefs Preferences
	var selected, colors []byte
	err := r.db.QueryRow(ctx, query, username, serverURL).Scan(
		&prefs.Username,
		&prefs.ServerURL,
		&prefs.ServerType,
		&selected,
		&colors,
		&prefs.DefaultCalendar,
		&prefs.WeekStart,
		&prefs.DefaultView,
		&prefs.Timezone,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
		&prefs.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("no preferences stored for %s on %s", username, serverURL)
		return Preferences{}, ErrPreferencesNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query preferences: %w", err)
		log.Error(err)
		return Preferences{}, err
	}

	if err := json.Unmarshal(selected, &prefs.SelectedCalendars); err != nil {
		return Preferences{}, fmt.Errorf("failed to read selected calendars: %w", err)
	}
	if err := json.Unmarshal(colors, &prefs.CalendarColors); err != nil {
		return Preferences{}, fmt.Errorf("failed to read calendar colors: %w", err)
	}
	return prefs, nil
}

// Store inserts or replaces the preferences of an account.
func (r *RepositoryImpl) Store(ctx context.Context, prefs Preferences) (Preferences, error) {
	if prefs.SelectedCalendars == nil {
		prefs.SelectedCalendars = []string{}
	}
	if prefs.CalendarColors == nil {
		prefs.CalendarColors = map[string]string{}
	}
	selected, err := json.Marshal(prefs.SelectedCalendars)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to encode selected calendars: %w", err)
	}
	colors, err := json.Marshal(prefs.CalendarColors)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to encode calendar colors: %w", err)
	}

	query := `INSERT INTO user_preferences (username, server_url, server_type, selected_calendars, calendar_colors,
				default_calendar, week_start, default_view, timezone, last_login)
				VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10)
				ON CONFLICT (username, server_url) DO UPDATE SET
					server_type = EXCLUDED.server_type,
					selected_calendars = EXCLUDED.selected_calendars,
					calendar_colors = EXCLUDED.calendar_colors,
					default_calendar = EXCLUDED.default_calendar,
					week_start = EXCLUDED.week_start,
					default_view = EXCLUDED.default_view,
					timezone = EXCLUDED.timezone,
					last_login = COALESCE(EXCLUDED.last_login, user_preferences.last_login),
					updated_at = now()
				RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		prefs.Username,
		prefs.ServerURL,
		prefs.ServerType,
		string(selected),
		string(colors),
		prefs.DefaultCalendar,
		prefs.WeekStart,
		prefs.DefaultView,
		prefs.Timezone,
		prefs.LastLogin,
	).Scan(&prefs.CreatedAt, &prefs.UpdatedAt)
	if err != nil {
		err := fmt.Errorf("could not store preferences: %w", err)
		log.Error(err)
		return Preferences{}, err
	}
	return prefs, nil
}

func (r *RepositoryImpl) TouchLogin(ctx context.Context, username, serverURL string, at time.Time) error {
	query := `UPDATE user_preferences SET last_login = $1 WHERE username = $2 AND server_url = $3`
	result, err := r.db.Exec(ctx, query, at, username, serverURL)
	if err != nil {
		return fmt.Errorf("could not update last login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPreferencesNotFound
	}
	return nil
}
