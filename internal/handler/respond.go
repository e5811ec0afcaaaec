package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/model"
	"github.com/pavelanni/quizflow/internal/quizgen"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	detail := trimDetail(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		detail = "internal server error"
	}
	writeJSON(w, status, api.ErrorResponse{Error: code, Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("malformed JSON body: %v: %w", err, model.ErrInvalidArgument)
	}
	return nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, quizgen.ErrQueueFull) || errors.Is(err, quizgen.ErrClosed)
}
