package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"glint/internal/domain/entitlement"
	"glint/internal/infrastructure/persistence/models"
	apperrors "glint/internal/shared/errors"
	"glint/internal/shared/logger"
)

// TrialRepositoryImpl implements entitlement.TrialRepository on top of GORM.
type TrialRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewTrialRepository creates a new trial repository instance
func NewTrialRepository(db *gorm.DB, logger logger.Interface) entitlement.TrialRepository {
	return &TrialRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

// Create stores a new trial record
func (r *TrialRepositoryImpl) Create(ctx context.Context, trial *entitlement.Trial) error {
	model := &models.TrialModel{
		GuildID:   trial.GuildID(),
		EndAt:     trial.EndAt(),
		CreatedAt: trial.CreatedAt(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return entitlement.ErrTrialAlreadyUsed
		}
		r.logger.Errorw("failed to create trial", "guild_id", trial.GuildID(), "error", err)
		return fmt.Errorf("failed to create trial: %w", err)
	}

	if err := trial.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set trial ID: %w", err)
	}

	r.logger.Infow("trial created",
		"id", model.ID,
		"guild_id", model.GuildID,
		"end_at", model.EndAt)
	return nil
}

// GetByGuild returns the guild's trial record
func (r *TrialRepositoryImpl) GetByGuild(ctx context.Context, guildID string) (*entitlement.Trial, error) {
	var model models.TrialModel
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrTrialNotFound
		}
		r.logger.Errorw("failed to get trial", "guild_id", guildID, "error", err)
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}

	trial, err := entitlement.ReconstructTrial(model.ID, model.GuildID, model.EndAt, model.CreatedAt)
	if err != nil {
		r.logger.Errorw("failed to reconstruct trial", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to reconstruct trial: %w", err)
	}
	return trial, nil
}
