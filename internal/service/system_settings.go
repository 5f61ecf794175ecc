package service

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
)

const (
	SettingScheduleEnabled = "schedule.enabled"
	SettingScheduleTime    = "schedule.time"
)

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

func (s *SystemSettingsService) Bool(ctx context.Context, key string, fallback bool) bool {
	var out bool
	if !s.get(ctx, key, &out) {
		return fallback
	}
	return out
}

func (s *SystemSettingsService) String(ctx context.Context, key, fallback string) string {
	var out string
	if !s.get(ctx, key, &out) || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}

func (s *SystemSettingsService) Set(ctx context.Context, key string, value any, description string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: description,
	})
}

// Schedule returns the persisted schedule switch and time, falling back to the
// given values for anything not stored yet.
func (s *SystemSettingsService) Schedule(ctx context.Context, enabled bool, clock string) (bool, string) {
	return s.Bool(ctx, SettingScheduleEnabled, enabled), s.String(ctx, SettingScheduleTime, clock)
}

func (s *SystemSettingsService) SaveSchedule(ctx context.Context, enabled bool, clock string) error {
	if err := s.Set(ctx, SettingScheduleEnabled, enabled, "daily watchlist analysis switch"); err != nil {
		return err
	}
	if clock == "" {
		return nil
	}
	return s.Set(ctx, SettingScheduleTime, clock, "daily watchlist analysis time (HH:MM)")
}

func (s *SystemSettingsService) get(ctx context.Context, key string, out any) bool {
	if s == nil || s.Repo == nil {
		return false
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, strings.TrimSpace(key))
	if err != nil || item == nil || len(item.Value) == 0 {
		return false
	}
	return json.Unmarshal(item.Value, out) == nil
}
