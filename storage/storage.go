package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
	"git.skobk.in/skobkin/telegram-social-games-bot/tea"
)

var ErrNotFound = errors.New("storage: record not found")

// Setting names
const (
	SettingTeaReset         = "tea_reset"
	SettingDuelOutcome      = "duel_outcome"
	SettingMarriageExtPrice = "marriage_extension_price"
)

type Storage struct {
	db *gorm.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		slog.Error("storage: Failed to connect to database", "error", err, "path", dbPath)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) migrate() error {
	err := s.db.AutoMigrate(&Participant{}, &Ban{}, &TeaEntry{}, &Setting{})
	if err != nil {
		slog.Error("storage: Failed to migrate database", "error", err)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

// UpsertParticipant creates or refreshes a chat participant
func (s *Storage) UpsertParticipant(ctx context.Context, p participants.Participant) error {
	row := Participant{
		ChatID:    p.ChatID,
		UserID:    p.UserID,
		FirstName: p.FirstName,
		Handle:    p.Handle,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "handle", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		slog.Error("storage: Failed to upsert participant", "error", result.Error,
			"chat_id", p.ChatID, "user_id", p.UserID)
		return fmt.Errorf("failed to upsert participant: %w", result.Error)
	}
	return nil
}

// Participants returns all known participants of all chats in first-seen order
func (s *Storage) Participants(ctx context.Context) ([]participants.Participant, error) {
	var rows []Participant
	result := s.db.WithContext(ctx).Order("rowid").Find(&rows)
	if result.Error != nil {
		slog.Error("storage: Failed to get participants", "error", result.Error)
		return nil, fmt.Errorf("failed to get participants: %w", result.Error)
	}

	list := make([]participants.Participant, 0, len(rows))
	for _, row := range rows {
		list = append(list, participants.Participant{
			ChatID:    row.ChatID,
			UserID:    row.UserID,
			FirstName: row.FirstName,
			Handle:    row.Handle,
		})
	}
	return list, nil
}

// SaveBan stores or replaces a ban
func (s *Storage) SaveBan(ctx context.Context, userID int64, until time.Time) error {
	result := s.db.WithContext(ctx).Save(&Ban{UserID: userID, Until: until})
	if result.Error != nil {
		slog.Error("storage: Failed to save ban", "error", result.Error, "user_id", userID)
		return fmt.Errorf("failed to save ban: %w", result.Error)
	}
	return nil
}

// DeleteBans removes bans of the given users
func (s *Storage) DeleteBans(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Delete(&Ban{})
	if result.Error != nil {
		slog.Error("storage: Failed to delete bans", "error", result.Error, "user_ids", userIDs)
		return fmt.Errorf("failed to delete bans: %w", result.Error)
	}
	return nil
}

// Bans returns all stored bans
func (s *Storage) Bans(ctx context.Context) (map[int64]time.Time, error) {
	var rows []Ban
	result := s.db.WithContext(ctx).Find(&rows)
	if result.Error != nil {
		slog.Error("storage: Failed to get bans", "error", result.Error)
		return nil, fmt.Errorf("failed to get bans: %w", result.Error)
	}

	bans := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		bans[row.UserID] = row.Until
	}
	return bans, nil
}

// AddTea adds liters to the user's weekly total
func (s *Storage) AddTea(ctx context.Context, userID int64, liters float64) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"liters": gorm.Expr("liters + ?", liters)}),
	}).Create(&TeaEntry{UserID: userID, Liters: liters})
	if result.Error != nil {
		slog.Error("storage: Failed to add tea", "error", result.Error, "user_id", userID)
		return fmt.Errorf("failed to add tea: %w", result.Error)
	}
	return nil
}

// TopTea returns the biggest tea drinkers
func (s *Storage) TopTea(ctx context.Context, limit int) ([]tea.Entry, error) {
	var rows []TeaEntry
	result := s.db.WithContext(ctx).Order("liters DESC").Order("user_id").Limit(limit).Find(&rows)
	if result.Error != nil {
		slog.Error("storage: Failed to get tea rating", "error", result.Error)
		return nil, fmt.Errorf("failed to get tea rating: %w", result.Error)
	}

	entries := make([]tea.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, tea.Entry{UserID: row.UserID, Liters: row.Liters})
	}
	return entries, nil
}

// TeaReset returns the last tea rating reset time, zero if the rating was never reset
func (s *Storage) TeaReset(ctx context.Context) (time.Time, error) {
	v, err := s.Setting(ctx, SettingTeaReset)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		slog.Error("storage: Invalid tea reset time", "error", err, "value", v)
		return time.Time{}, fmt.Errorf("failed to parse tea reset time: %w", err)
	}
	return at, nil
}

// ResetTea clears the tea rating and remembers the reset time
func (s *Storage) ResetTea(ctx context.Context, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TeaEntry{}).Error; err != nil {
			return err
		}
		return tx.Save(&Setting{Name: SettingTeaReset, Value: at.UTC().Format(time.RFC3339Nano)}).Error
	})
	if err != nil {
		slog.Error("storage: Failed to reset tea rating", "error", err)
		return fmt.Errorf("failed to reset tea rating: %w", err)
	}
	return nil
}

// Setting returns a stored value or ErrNotFound
func (s *Storage) Setting(ctx context.Context, key string) (string, error) {
	var row Setting
	result := s.db.WithContext(ctx).Where("name = ?", key).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if result.Error != nil {
		slog.Error("storage: Failed to get setting", "error", result.Error, "key", key)
		return "", fmt.Errorf("failed to get setting: %w", result.Error)
	}
	return row.Value, nil
}

// SetSetting stores a value
func (s *Storage) SetSetting(ctx context.Context, key, value string) error {
	result := s.db.WithContext(ctx).Save(&Setting{Name: key, Value: value})
	if result.Error != nil {
		slog.Error("storage: Failed to save setting", "error", result.Error, "key", key)
		return fmt.Errorf("failed to save setting: %w", result.Error)
	}
	return nil
}
