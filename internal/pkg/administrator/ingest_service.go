package administrator

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/notfound"
	"sitemonitor/internal/pkg/vitals"
)

const maxIngestBody = 64 << 10

// Accepts one Core Web Vitals sample from a browser beacon.
func (svc *service) ingestVitals(writer http.ResponseWriter, request *http.Request) {
	var sample vitals.Sample
	if err := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxIngestBody)).Decode(&sample); err != nil {
		http.Error(writer, "failed to decode request", http.StatusBadRequest)
		logger.Log.Warn("Failed to decode vitals sample", zap.Error(err))
		return
	}

	if err := svc.Vitals.Record(sample); err != nil {
		if errors.Is(err, vitals.ErrInvalidSample) {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(writer, "failed to record sample", http.StatusInternalServerError)
		logger.Log.Error("Failed to record vitals sample", zap.Error(err))
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// Accepts one 404 hit. Scanner noise is acknowledged but not stored.
func (svc *service) ingestNotFound(writer http.ResponseWriter, request *http.Request) {
	var event notfound.Event
	if err := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxIngestBody)).Decode(&event); err != nil {
		http.Error(writer, "failed to decode request", http.StatusBadRequest)
		logger.Log.Warn("Failed to decode 404 event", zap.Error(err))
		return
	}
	if event.UserAgent == "" {
		event.UserAgent = request.UserAgent()
	}

	recorded, err := svc.NotFound.Record(event)
	if err != nil {
		if errors.Is(err, notfound.ErrMissingURL) {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(writer, "failed to record event", http.StatusInternalServerError)
		logger.Log.Error("Failed to record 404 event", zap.Error(err))
		return
	}
	writeJSON(writer, http.StatusAccepted, map[string]bool{"recorded": recorded})
}
