package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milestonez/internal/codec"
	"milestonez/internal/llm"
	"milestonez/internal/repository"
	"milestonez/internal/service"
	"milestonez/pkg/circuitbreaker"
	"milestonez/pkg/logger"
)

const IdempotencyHeader = "Idempotency-Key"

type MilestoneHandler struct {
	svc    *service.MilestoneService
	logger *zap.Logger
}

func NewMilestoneHandler(svc *service.MilestoneService, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{svc: svc, logger: logger}
}

func (h *MilestoneHandler) GenerateMilestones(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	var req GenerateMilestonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("GenerateMilestones: invalid request body", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if !authorized(c, string(req.UserID)) {
		c.JSON(http.StatusForbidden, gin.H{"detail": "token does not belong to user_id"})
		return
	}

	log.Info("GenerateMilestones request received",
		zap.String("user_id", string(req.UserID)),
		zap.Int("total_weeks", req.TotalWeeks),
		zap.String("client_ip", c.ClientIP()),
	)

	res, err := h.svc.GenerateMilestones(c.Request.Context(), service.GenerateRequest{
		UserID:             string(req.UserID),
		ProjectID:          string(req.ProjectID),
		ProjectDescription: req.ProjectDescription,
		ModifyingPrompt:    req.ModifyingPrompt,
		TotalWeeks:         req.TotalWeeks,
		Evaluate:           req.Evaluate,
		Model:              req.Model,
		IdempotencyKey:     c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		h.writeError(c, "GenerateMilestones", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *MilestoneHandler) UpdateMilestone(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	var req UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("UpdateMilestone: invalid request body", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if !authorized(c, string(req.UserID)) {
		c.JSON(http.StatusForbidden, gin.H{"detail": "token does not belong to user_id"})
		return
	}

	_, err := h.svc.UpdateMilestone(c.Request.Context(), service.UpdateRequest{
		UserID:    string(req.UserID),
		ProjectID: string(req.ProjectID),
		Milestone: req.milestone(),
	})
	if err != nil {
		h.writeError(c, "UpdateMilestone", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Milestone updated successfully"})
}

func (h *MilestoneHandler) GetAllHistories(c *gin.Context) {
	recs, err := h.svc.ListHistories(c.Request.Context())
	if err != nil {
		h.writeError(c, "GetAllHistories", err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *MilestoneHandler) GetHistory(c *gin.Context) {
	userID := c.Param("user_id")
	if !authorized(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"detail": "token does not belong to user_id"})
		return
	}
	rec, err := h.svc.GetHistory(c.Request.Context(), userID, c.Param("project_id"))
	if err != nil {
		h.writeError(c, "GetHistory", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *MilestoneHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Ok"})
}

// authorized 当启用 JWT 时，token 中的 user_id 必须与请求一致
func authorized(c *gin.Context, userID string) bool {
	v, ok := c.Get("user_id")
	if !ok {
		return true
	}
	tokenUser, _ := v.(string)
	return tokenUser == userID
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var pErr *llm.ProviderError
	switch {
	case errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, codec.ErrAmbiguousPatchTarget):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, codec.ErrReservedContent):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrHistoryNotFound),
		errors.Is(err, codec.ErrPatchTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &pErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *MilestoneHandler) writeError(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	stage := service.StageOf(err)
	log := logger.WithTrace(c.Request.Context(), h.logger)

	detail := err.Error()
	if errors.Is(err, repository.ErrHistoryNotFound) {
		detail = "History not found for the specified user and project."
	}

	fields := []zap.Field{zap.String("stage", string(stage)), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		log.Error(op+": failed", fields...)
	} else {
		log.Warn(op+": rejected", fields...)
	}

	body := gin.H{"detail": detail}
	if stage != "" {
		body["stage"] = stage
	}
	c.JSON(status, body)
}
