package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/printd/internal/settings"
)

// SettingsStore implements settings.Store on PostgreSQL, one row per
// terminal.
type SettingsStore struct {
	pool     *pgxpool.Pool
	terminal string
}

// NewSettingsStore creates a SettingsStore for the named terminal.
func NewSettingsStore(pool *pgxpool.Pool, terminal string) *SettingsStore {
	return &SettingsStore{pool: pool, terminal: terminal}
}

// Load returns the persisted settings, or the defaults when this terminal
// has never saved any.
func (s *SettingsStore) Load(ctx context.Context) (settings.Settings, error) {
	var out settings.Settings
	err := s.pool.QueryRow(ctx, `
		SELECT enabled, autoprint, printer_name, paper_width, font_size,
		       line_spacing, cut_paper, open_drawer, copies
		FROM printer_settings WHERE terminal = $1`, s.terminal,
	).Scan(&out.Enabled, &out.Autoprint, &out.PrinterName, &out.PaperWidth,
		&out.FontSize, &out.LineSpacing, &out.CutPaper, &out.OpenDrawer, &out.Copies)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Default(), nil
		}
		return settings.Settings{}, errors.Wrap(err, "load settings")
	}
	return out, nil
}

// Save upserts the settings row for this terminal.
func (s *SettingsStore) Save(ctx context.Context, cfg settings.Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO printer_settings
			(terminal, enabled, autoprint, printer_name, paper_width,
			 font_size, line_spacing, cut_paper, open_drawer, copies, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (terminal) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			autoprint = EXCLUDED.autoprint,
			printer_name = EXCLUDED.printer_name,
			paper_width = EXCLUDED.paper_width,
			font_size = EXCLUDED.font_size,
			line_spacing = EXCLUDED.line_spacing,
			cut_paper = EXCLUDED.cut_paper,
			open_drawer = EXCLUDED.open_drawer,
			copies = EXCLUDED.copies,
			updated_at = now()`,
		s.terminal, cfg.Enabled, cfg.Autoprint, cfg.PrinterName, cfg.PaperWidth,
		cfg.FontSize, cfg.LineSpacing, cfg.CutPaper, cfg.OpenDrawer, cfg.Copies)
	if err != nil {
		return errors.Wrap(err, "save settings")
	}
	return nil
}
