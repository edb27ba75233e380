package controller

import (
	"ctchen222/tictactoe-rooms/internal/api/models"
	"ctchen222/tictactoe-rooms/internal/api/response"
	"ctchen222/tictactoe-rooms/internal/api/service"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResultController serves the finished-games ledger.
type ResultController struct {
	resultService service.ResultService
}

// NewResultController creates a new ResultController.
func NewResultController(resultService service.ResultService) *ResultController {
	return &ResultController{resultService: resultService}
}

// List handles GET /api/results?limit=N&player=ID.
func (rc *ResultController) List(c *gin.Context) {
	var query models.ResultsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	results, err := rc.resultService.List(c.Request.Context(), &query)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to list game results", "error", err)
		response.ErrorResponse(c, http.StatusInternalServerError, "failed to list results")
		return
	}

	response.SuccessResponseList(c, results)
}
