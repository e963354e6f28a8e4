package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/response"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// QueueDepther reports the backlog of the violation audit queue.
type QueueDepther interface {
	QueueDepth(ctx context.Context) (int64, error)
}

// LiveCounter reports how many sessions this node is hosting.
type LiveCounter interface {
	LiveCount() int
}

// SystemHandler reports process health for load balancers and staff.
type SystemHandler struct {
	checks    map[string]Check
	queue     QueueDepther
	live      LiveCounter
	driver    string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. queue may be nil.
func NewSystemHandler(driver string, checks map[string]Check, queue QueueDepther, live LiveCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		queue:     queue,
		live:      live,
		driver:    driver,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type systemStatus struct {
	healthReport
	Uptime         string `json:"uptime"`
	StoreDriver    string `json:"store_driver"`
	LiveSessions   int    `json:"live_sessions"`
	ViolationQueue *int64 `json:"violation_queue,omitempty"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	GoVersion      string `json:"go_version"`
	NumCPU         int    `json:"num_cpu"`
}

// Health godoc
// GET /health
// Responds 503 when any dependency check fails.
func (h *SystemHandler) Health(c *gin.Context) {
	report := h.runChecks(c.Request.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Status godoc
// GET /api/v1/admin/system/status
func (h *SystemHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := systemStatus{
		healthReport:   h.runChecks(ctx),
		Uptime:         formatDuration(time.Since(h.startTime)),
		StoreDriver:    h.driver,
		LiveSessions:   h.live.LiveCount(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
	}
	if h.queue != nil {
		qctx, cancel := context.WithTimeout(ctx, checkTimeout)
		depth, err := h.queue.QueueDepth(qctx)
		cancel()
		if err == nil {
			s.ViolationQueue = &depth
		} else {
			h.log.Warn().Err(err).Msg("Queue depth lookup failed")
		}
	}
	response.Success(c, http.StatusOK, s)
}

func (h *SystemHandler) runChecks(ctx context.Context) healthReport {
	report := healthReport{Status: "ok"}
	if len(h.checks) == 0 {
		return report
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report.Checks = make(map[string]string, len(names))
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := h.checks[name](cctx)
		cancel()
		if err != nil {
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
