package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/chemsus-backend/internal/models"
)

// SettingsRepository хранит настройки сайта в site_settings.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) List(ctx context.Context) ([]models.SiteSetting, error) {
	settings := []models.SiteSetting{}
	if err := r.db.SelectContext(ctx, &settings, `SELECT key, value, updated_at FROM site_settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("settings repository: list %w", err)
	}
	return settings, nil
}

// Upsert создаёт или обновляет значение по ключу.
func (r *SettingsRepository) Upsert(ctx context.Context, key, value string) (*models.SiteSetting, error) {
	var s models.SiteSetting
	err := r.db.GetContext(ctx, &s, `
		INSERT INTO site_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING key, value, updated_at
	`, key, value)
	if err != nil {
		return nil, fmt.Errorf("settings repository: upsert %w", err)
	}
	return &s, nil
}
