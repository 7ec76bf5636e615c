// Package handlers provides the HTTP handlers of the activation server.
package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/clientboot/internal/apierrors"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
)

// writeJSON serializes v into a buffer first so a failed encode never sends a
// partial response.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed writing JSON response body", logfields.Error(err))
		return err
	}
	return nil
}

// writeAPIError answers with an error envelope and the status matching its code.
func writeAPIError(w http.ResponseWriter, err *apierrors.ApiError) error {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	return writeJSON(w, apierrors.StatusFor(err.Code), apierrors.Failure(err))
}
