package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Joserraldo/diabetes/internal/domain"
)

const (
	statusMessage   = "diabetes risk prediction API operational"
	maxRequestBytes = 64 << 10
)

type handler struct {
	model  *Model
	logger *zap.Logger
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": statusMessage})
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeDetail(w, http.StatusBadRequest, "could not read request body")
		return
	}
	features, err := decodeFeatures(raw)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out := h.model.Predict(features)
	h.logger.Debug("prediction served",
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Int("resultado", out.Result),
		zap.Float64("probabilidad", out.Probability),
	)
	writeJSON(w, http.StatusOK, out)
}

// decodeFeatures requires every canonical field as a JSON number. Extra
// fields are ignored.
func decodeFeatures(raw []byte) (map[string]float64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	out := make(map[string]float64, len(fields))
	for _, m := range domain.Metrics() {
		v, ok := fields[m.Canonical]
		if !ok || string(v) == "null" {
			return nil, fmt.Errorf("field required: %s", m.Canonical)
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, fmt.Errorf("field %s must be a number", m.Canonical)
		}
		out[m.Canonical] = f
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
