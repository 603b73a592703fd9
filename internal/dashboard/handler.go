package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aevon-lab/salestrack/internal/compute"
	httperr "github.com/aevon-lab/salestrack/internal/core/errors"
	"github.com/aevon-lab/salestrack/internal/refresh"
	"github.com/gin-gonic/gin"
)

const (
	msgNoResult         = "No result has been computed yet"
	msgCustomerNotFound = "Customer not found in the current result"
	msgRefreshFailed    = "Refresh failed, the previous result is still displayed"
)

// PerformanceHandler returns the whole current snapshot.
func (s *Service) PerformanceHandler(c *gin.Context) {
	current := s.coordinator.Current()
	if current == nil {
		writeError(c, http.StatusNotFound, httperr.HttpNoResultError, msgNoResult, nil)
		return
	}
	c.JSON(http.StatusOK, current)
}

// CustomerHandler returns one customer's performance.
func (s *Service) CustomerHandler(c *gin.Context) {
	code := c.Param("customer_code")

	current := s.coordinator.Current()
	if current == nil {
		writeError(c, http.StatusNotFound, httperr.HttpNoResultError, msgNoResult, nil)
		return
	}

	perf, ok := current.Find(code)
	if !ok {
		writeError(c, http.StatusNotFound, httperr.HttpCustomerNotFound, msgCustomerNotFound,
			map[string]interface{}{"customer_code": code})
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (s *Service) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.coordinator.Status())
}

// RefreshHandler is the manual trigger. Its failure is surfaced to the caller.
func (s *Service) RefreshHandler(c *gin.Context) {
	result, err := s.coordinator.Refresh(c.Request.Context(), refresh.TriggerManual)
	if err != nil {
		slog.Warn("[Dashboard] Manual refresh failed", "error", err)
		status := s.coordinator.Status()
		writeError(c, http.StatusBadGateway, httperr.HttpRefreshFailedError, msgRefreshFailed,
			map[string]interface{}{
				"error":      err.Error(),
				"has_result": status.HasResult,
				"result_id":  status.ResultID,
			})
		return
	}

	slog.Info("[Dashboard] Manual refresh complete", "result_id", result.ID)
	c.JSON(http.StatusOK, result)
}

// ComputeHandler computes a fresh result without touching any cache. It is
// the endpoint a Remote strategy on another deployment calls.
func (s *Service) ComputeHandler(c *gin.Context) {
	result, err := s.compute.Compute(c.Request.Context())
	if err != nil {
		slog.Error("[Dashboard] Compute request failed", "error", err)
		c.JSON(http.StatusInternalServerError, compute.Envelope{
			Success:   false,
			Error:     err.Error(),
			ErrorType: httperr.HttpComputeFailedError,
		})
		return
	}

	c.JSON(http.StatusOK, compute.Envelope{
		Success: true,
		Data:    &result,
		Message: fmt.Sprintf("Processed %d customers", result.Summary.CustomerCount),
	})
}

func writeError(c *gin.Context, statusCode int, errorType, message string, details interface{}) {
	c.JSON(statusCode, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}
