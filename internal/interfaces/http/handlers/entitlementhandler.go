package handlers

import (
	stderrors "errors"
	"time"

	"github.com/gin-gonic/gin"

	appentitlement "glint/internal/application/entitlement"
	"glint/internal/domain/entitlement"
	"glint/internal/shared/errors"
	"glint/internal/shared/logger"
	"glint/internal/shared/utils"
)

// EntitlementHandler exposes the gate's management operations over HTTP for
// the payment backend.
type EntitlementHandler struct {
	gate   *appentitlement.GateService
	logger logger.Interface
}

// NewEntitlementHandler creates the handler.
func NewEntitlementHandler(gate *appentitlement.GateService) *EntitlementHandler {
	return &EntitlementHandler{
		gate:   gate,
		logger: logger.NewLogger(),
	}
}

type GrantRequest struct {
	GuildID     string `json:"guild_id" binding:"required"`
	BuyerUserID string `json:"buyer_user_id" binding:"required"`
	Plan        string `json:"plan" binding:"required,oneof=one_time monthly"`
}

type TransferRequest struct {
	NewGuildID string `json:"new_guild_id" binding:"required"`
}

// AuthorizationResponse is the wire form of an authorization.
type AuthorizationResponse struct {
	GuildID            string     `json:"guild_id"`
	BuyerUserID        string     `json:"buyer_user_id"`
	Plan               string     `json:"plan"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	TransfersRemaining int        `json:"transfers_remaining"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toAuthorizationResponse(auth *entitlement.Authorization) AuthorizationResponse {
	return AuthorizationResponse{
		GuildID:            auth.GuildID(),
		BuyerUserID:        auth.BuyerUserID(),
		Plan:               string(auth.Plan()),
		ExpiresAt:          auth.ExpiresAt(),
		TransfersRemaining: auth.TransfersRemaining(),
		CreatedAt:          auth.CreatedAt(),
	}
}

func (h *EntitlementHandler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid grant request", "error", err)
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	auth, err := h.gate.Grant(c.Request.Context(), req.GuildID, req.BuyerUserID, entitlement.Plan(req.Plan))
	if err != nil {
		utils.ErrorResponseWithError(c, mapEntitlementError(err))
		return
	}

	utils.CreatedResponse(c, toAuthorizationResponse(auth), "Authorization granted")
}

func (h *EntitlementHandler) Get(c *gin.Context) {
	guildID := c.Param("guild_id")

	decision, err := h.gate.Evaluate(c.Request.Context(), guildID)
	if err != nil {
		utils.ErrorResponseWithError(c, mapEntitlementError(err))
		return
	}

	utils.SuccessResponse(c, 200, "", gin.H{
		"guild_id": guildID,
		"decision": string(decision),
		"permits":  decision.Permits(),
	})
}

func (h *EntitlementHandler) Renew(c *gin.Context) {
	guildID := c.Param("guild_id")

	auth, err := h.gate.Renew(c.Request.Context(), guildID)
	if err != nil {
		utils.ErrorResponseWithError(c, mapEntitlementError(err))
		return
	}

	utils.SuccessResponse(c, 200, "Authorization renewed", toAuthorizationResponse(auth))
}

func (h *EntitlementHandler) Transfer(c *gin.Context) {
	guildID := c.Param("guild_id")

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	auth, err := h.gate.Transfer(c.Request.Context(), guildID, req.NewGuildID)
	if err != nil {
		utils.ErrorResponseWithError(c, mapEntitlementError(err))
		return
	}

	utils.SuccessResponse(c, 200, "Authorization transferred", toAuthorizationResponse(auth))
}

func (h *EntitlementHandler) Revoke(c *gin.Context) {
	guildID := c.Param("guild_id")

	if err := h.gate.Revoke(c.Request.Context(), guildID); err != nil {
		utils.ErrorResponseWithError(c, mapEntitlementError(err))
		return
	}

	utils.SuccessResponse(c, 200, "Authorization revoked", nil)
}

// mapEntitlementError translates domain sentinels into HTTP-facing errors.
func mapEntitlementError(err error) error {
	switch {
	case stderrors.Is(err, entitlement.ErrAlreadyAuthorized):
		return errors.NewConflictError("guild is already authorized")
	case stderrors.Is(err, entitlement.ErrNotAuthorized),
		stderrors.Is(err, entitlement.ErrAuthorizationNotFound):
		return errors.NewNotFoundError("guild has no authorization")
	case stderrors.Is(err, entitlement.ErrNotSubscription):
		return errors.NewBadRequestError("only subscription plans can be renewed")
	case stderrors.Is(err, entitlement.ErrNoTransfersLeft):
		return errors.NewConflictError("authorization has no transfers left")
	default:
		return err
	}
}
