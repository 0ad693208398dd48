package administrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/alert"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/notfound"
	"sitemonitor/internal/pkg/scheduler"
	"sitemonitor/internal/pkg/vitals"
)

type Monitor interface {
	RunDailyChecks(ctx context.Context) (*models.DailyCheckResult, error)
	LastRun(ctx context.Context) (*models.DailyCheckResult, bool, error)
	State() scheduler.State
	LastOutcome() scheduler.State
	NextScheduled() time.Time
}

type AlertStore interface {
	Alerts(f alert.Filter) []alert.Record
	Acknowledge(id string) error
	Resolve(id string) error
}

type VitalsRecorder interface {
	Record(sample vitals.Sample) error
}

type NotFoundRecorder interface {
	Record(e notfound.Event) (bool, error)
}

// Dependencies of the HTTP handler.
type Services struct {
	Monitor   Monitor
	Alerts    AlertStore
	Vitals    VitalsRecorder
	NotFound  NotFoundRecorder
	StartTime time.Time
}

type service struct {
	Services
}

// Builds the monitoring API.
func NewHandler(s Services) http.Handler {
	svc := &service{Services: s}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", svc.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/monitoring/dashboard", svc.dashboard)
	mux.HandleFunc("GET /api/monitoring/alerts", svc.listAlerts)
	mux.HandleFunc("POST /api/monitoring/alerts/{id}/ack", svc.acknowledge)
	mux.HandleFunc("POST /api/monitoring/alerts/{id}/resolve", svc.resolve)
	mux.HandleFunc("POST /api/monitoring/run", svc.run)

	mux.HandleFunc("POST /api/vitals", svc.ingestVitals)
	mux.HandleFunc("POST /api/404", svc.ingestNotFound)

	return mux
}

func (svc *service) health(writer http.ResponseWriter, request *http.Request) {
	health := struct {
		Status      string    `json:"status"`
		State       string    `json:"state"`
		LastOutcome string    `json:"last_outcome"`
		NextRun     time.Time `json:"next_run"`
		Uptime      string    `json:"uptime"`
		StartTime   time.Time `json:"start_time"`
	}{
		Status:      "OK",
		State:       svc.Monitor.State().String(),
		LastOutcome: svc.Monitor.LastOutcome().String(),
		NextRun:     svc.Monitor.NextScheduled(),
		Uptime:      time.Since(svc.StartTime).Round(time.Second).String(),
		StartTime:   svc.StartTime,
	}
	writeJSON(writer, http.StatusOK, health)
}

func (svc *service) dashboard(writer http.ResponseWriter, request *http.Request) {
	result, ok, err := svc.Monitor.LastRun(request.Context())
	if err != nil {
		logger.Log.Error("Failed to load last run", zap.Error(err))
		http.Error(writer, "failed to load last run", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(writer, "no monitoring data yet", http.StatusNotFound)
		return
	}
	writeJSON(writer, http.StatusOK, result)
}

func (svc *service) listAlerts(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := alert.Filter{
		Category:   models.Category(query.Get("category")),
		Severity:   models.Severity(query.Get("severity")),
		Unresolved: query.Get("unresolved") == "true",
	}

	if filter.Severity != "" && filter.Severity.Rank() == 0 {
		http.Error(writer, "unknown severity", http.StatusBadRequest)
		return
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(writer, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(writer, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}

	writeJSON(writer, http.StatusOK, svc.Alerts.Alerts(filter))
}

func (svc *service) acknowledge(writer http.ResponseWriter, request *http.Request) {
	svc.updateAlert(writer, request, svc.Alerts.Acknowledge)
}

func (svc *service) resolve(writer http.ResponseWriter, request *http.Request) {
	svc.updateAlert(writer, request, svc.Alerts.Resolve)
}

func (svc *service) updateAlert(writer http.ResponseWriter, request *http.Request, update func(string) error) {
	id := request.PathValue("id")
	if err := update(id); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			http.Error(writer, "alert not found", http.StatusNotFound)
			return
		}
		logger.Log.Error("Failed to update alert", zap.String("id", id), zap.Error(err))
		http.Error(writer, "failed to update alert", http.StatusInternalServerError)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

// Runs synchronously. The run is detached from the request so a client
// disconnect does not cancel it halfway.
func (svc *service) run(writer http.ResponseWriter, request *http.Request) {
	result, err := svc.Monitor.RunDailyChecks(context.WithoutCancel(request.Context()))
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		http.Error(writer, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(writer, "daily run failed", http.StatusInternalServerError)
	default:
		writeJSON(writer, http.StatusAccepted, result)
	}
}

func writeJSON(writer http.ResponseWriter, status int, v interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		logger.Log.Warn("Failed to encode response", zap.Error(err))
	}
}
