package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"glint/internal/domain/entitlement"
	"glint/internal/infrastructure/persistence/models"
	apperrors "glint/internal/shared/errors"
	"glint/internal/shared/logger"
)

// AuthorizationRepositoryImpl implements entitlement.AuthorizationRepository
// on top of GORM.
type AuthorizationRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewAuthorizationRepository creates a new authorization repository instance
func NewAuthorizationRepository(db *gorm.DB, logger logger.Interface) entitlement.AuthorizationRepository {
	return &AuthorizationRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

// Create stores a new authorization record
func (r *AuthorizationRepositoryImpl) Create(ctx context.Context, auth *entitlement.Authorization) error {
	model := &models.AuthorizationModel{
		GuildID:            auth.GuildID(),
		BuyerUserID:        auth.BuyerUserID(),
		Plan:               auth.Plan().String(),
		ExpiresAt:          auth.ExpiresAt(),
		TransfersRemaining: auth.TransfersRemaining(),
		CreatedAt:          auth.CreatedAt(),
		UpdatedAt:          auth.UpdatedAt(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return entitlement.ErrAlreadyAuthorized
		}
		r.logger.Errorw("failed to create authorization",
			"guild_id", auth.GuildID(),
			"buyer_user_id", auth.BuyerUserID(),
			"error", err)
		return fmt.Errorf("failed to create authorization: %w", err)
	}

	if err := auth.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set authorization ID: %w", err)
	}

	r.logger.Infow("authorization created",
		"id", model.ID,
		"guild_id", model.GuildID,
		"plan", model.Plan)
	return nil
}

// GetByGuild returns the guild's authorization
func (r *AuthorizationRepositoryImpl) GetByGuild(ctx context.Context, guildID string) (*entitlement.Authorization, error) {
	var model models.AuthorizationModel
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrAuthorizationNotFound
		}
		r.logger.Errorw("failed to get authorization", "guild_id", guildID, "error", err)
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}
	return r.toDomain(&model)
}

// ListByBuyer returns all authorizations purchased by a user
func (r *AuthorizationRepositoryImpl) ListByBuyer(ctx context.Context, buyerUserID string) ([]*entitlement.Authorization, error) {
	var records []models.AuthorizationModel
	if err := r.db.WithContext(ctx).
		Where("buyer_user_id = ?", buyerUserID).
		Find(&records).Error; err != nil {
		r.logger.Errorw("failed to list authorizations", "buyer_user_id", buyerUserID, "error", err)
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}
	return r.toDomainList(records)
}

// ListExpired returns subscription authorizations whose expiry is before now
func (r *AuthorizationRepositoryImpl) ListExpired(ctx context.Context, now time.Time) ([]*entitlement.Authorization, error) {
	var records []models.AuthorizationModel
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&records).Error; err != nil {
		r.logger.Errorw("failed to list expired authorizations", "error", err)
		return nil, fmt.Errorf("failed to list expired authorizations: %w", err)
	}
	return r.toDomainList(records)
}

// Update persists mutations of an existing authorization
func (r *AuthorizationRepositoryImpl) Update(ctx context.Context, auth *entitlement.Authorization) error {
	if auth.ID() == 0 {
		return fmt.Errorf("cannot update authorization without ID")
	}

	updates := map[string]any{
		"guild_id":            auth.GuildID(),
		"expires_at":          auth.ExpiresAt(),
		"transfers_remaining": auth.TransfersRemaining(),
		"updated_at":          auth.UpdatedAt(),
	}

	result := r.db.WithContext(ctx).
		Model(&models.AuthorizationModel{}).
		Where("id = ?", auth.ID()).
		Updates(updates)
	if result.Error != nil {
		if apperrors.IsDuplicateError(result.Error) {
			return entitlement.ErrAlreadyAuthorized
		}
		r.logger.Errorw("failed to update authorization", "id", auth.ID(), "error", result.Error)
		return fmt.Errorf("failed to update authorization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrAuthorizationNotFound
	}

	r.logger.Infow("authorization updated",
		"id", auth.ID(),
		"guild_id", auth.GuildID(),
		"transfers_remaining", auth.TransfersRemaining())
	return nil
}

// Delete removes the guild's authorization
func (r *AuthorizationRepositoryImpl) Delete(ctx context.Context, guildID string) error {
	result := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Delete(&models.AuthorizationModel{})
	if result.Error != nil {
		r.logger.Errorw("failed to delete authorization", "guild_id", guildID, "error", result.Error)
		return fmt.Errorf("failed to delete authorization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrAuthorizationNotFound
	}

	r.logger.Infow("authorization deleted", "guild_id", guildID)
	return nil
}

func (r *AuthorizationRepositoryImpl) toDomain(model *models.AuthorizationModel) (*entitlement.Authorization, error) {
	auth, err := entitlement.ReconstructAuthorization(
		model.ID,
		model.GuildID,
		model.BuyerUserID,
		entitlement.Plan(model.Plan),
		model.ExpiresAt,
		model.TransfersRemaining,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		r.logger.Errorw("failed to reconstruct authorization", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to reconstruct authorization: %w", err)
	}
	return auth, nil
}

func (r *AuthorizationRepositoryImpl) toDomainList(records []models.AuthorizationModel) ([]*entitlement.Authorization, error) {
	auths := make([]*entitlement.Authorization, len(records))
	for i := range records {
		auth, err := r.toDomain(&records[i])
		if err != nil {
			return nil, err
		}
		auths[i] = auth
	}
	return auths, nil
}
