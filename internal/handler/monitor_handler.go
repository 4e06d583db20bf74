package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from stalling the SSE loop
)

// MonitorHandler streams live session activity to administrators.
type MonitorHandler struct {
	events           service.SessionEventBus
	dashboardService *service.DashboardService
	log              zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	events service.SessionEventBus,
	dashboardService *service.DashboardService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		events:           events,
		dashboardService: dashboardService,
		log:              log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:     refreshInterval,
		keepAliveEvery:   keepAliveInterval,
	}
}

// MonitorSSE godoc
// GET /api/v1/admin/monitor
// Sends a dashboard snapshot, then forwards every session event as it
// happens. Dashboard refreshes follow bursts of activity.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	// Subscribe before the snapshot so no event falls between the two.
	ch, closeSub := h.events.Subscribe(reqCtx)
	defer closeSub()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendDashboard(c, reqCtx, "snapshot")

	keepAliveTicker := time.NewTicker(h.keepAliveEvery)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(h.refreshEvery)
	defer refreshTicker.Stop()

	// Refresh only when something happened since the last one.
	dirty := false

	h.log.Info().Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case payload, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendDashboard(c, reqCtx, "refresh")

		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendDashboard(c *gin.Context, parentCtx context.Context, kind string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	data, err := h.dashboardService.GetDashboardData(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("kind", kind).Msg("Failed to fetch dashboard for monitor")
		return
	}

	c.SSEvent("message", gin.H{
		"type": kind,
		"data": data,
	})
	c.Writer.Flush()
}
