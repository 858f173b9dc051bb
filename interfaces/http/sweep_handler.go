package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
	"linkedpost/infrastructure/utils"
	"linkedpost/usecase"
)

const (
	HeaderCronTrigger = "X-Cron-Trigger"
	HeaderVercelCron  = "X-Vercel-Cron"
)

type ISweepHandler interface {
	Trigger(c *gin.Context)
	MethodNotAllowed(c *gin.Context)
}

type SweepHandler struct {
	sweepUsecase usecase.ISweepUsecase
}

func NewSweepHandler(sweepUsecase usecase.ISweepUsecase) ISweepHandler {
	return &SweepHandler{sweepUsecase: sweepUsecase}
}

// TriggerSource tells the periodic scheduler apart from client fallback polling.
func TriggerSource(r *http.Request) model.SweepSource {
	if r.Header.Get(HeaderCronTrigger) == "true" || r.Header.Get(HeaderVercelCron) == "true" {
		return model.SweepSourceCron
	}
	return model.SweepSourcePoll
}

// Trigger handles POST /api/cron/post-scheduled.
func (h *SweepHandler) Trigger(c *gin.Context) {
	source := TriggerSource(c.Request)
	now := utils.GetCurrentTime()
	logger.GetLogger().WithField("source", source).WithField("timestamp", now).Info("Post scheduled check initiated")

	// A sweep runs to completion once started, even if the caller hangs up.
	summary, err := h.sweepUsecase.RunSweep(context.WithoutCancel(c.Request.Context()), now, source)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error in scheduled posts sweep")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.TriggerResponse{
		Message: fmt.Sprintf("Processed %d scheduled posts", summary.ProcessedCount),
		Results: summary.Results,
	})
}

func (h *SweepHandler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "Method not allowed"})
}
