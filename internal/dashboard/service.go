// Package dashboard exposes the current result, refresh control and the
// compute-now endpoint over HTTP.
package dashboard

import (
	"context"

	"github.com/aevon-lab/salestrack/internal/compute"
	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/refresh"
	"github.com/gin-gonic/gin"
)

// Coordinator is the refresh surface the handlers need.
type Coordinator interface {
	Current() *aggregation.CachedResult
	Status() refresh.Status
	Refresh(ctx context.Context, trigger refresh.Trigger) (*aggregation.CachedResult, error)
}

type Service struct {
	coordinator Coordinator
	compute     compute.Strategy
}

// NewService wires the handlers. computeNow backs POST /v1/compute and may be
// nil, in which case the endpoint is not registered.
func NewService(coordinator Coordinator, computeNow compute.Strategy) *Service {
	if coordinator == nil {
		panic("dashboard: coordinator must not be nil")
	}
	return &Service{coordinator: coordinator, compute: computeNow}
}

// RegisterRoutes registers the dashboard routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/performance", s.PerformanceHandler)
	v1.GET("/performance/:customer_code", s.CustomerHandler)
	v1.GET("/status", s.StatusHandler)
	v1.POST("/refresh", s.RefreshHandler)

	if s.compute != nil {
		v1.POST("/compute", s.ComputeHandler)
	}
}
