// Package handler serves the editor command endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/editor"
	gwmw "github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/middleware"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
	pkgmw "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/tracing"
)

const maxCommandBytes = 1 << 20

// Executor runs one editor command for a session.
type Executor interface {
	Execute(ctx context.Context, sess editor.Session, cmd editor.Command) (any, error)
}

type Handler struct {
	editor Executor
	logger *slog.Logger
}

func New(ex Executor) *Handler {
	return &Handler{
		editor: ex,
		logger: slog.Default().With("component", "editor-handler"),
	}
}

// Editor serves POST /api/v1/editor. The session must already be attached by
// the auth middleware.
func (h *Handler) Editor(w http.ResponseWriter, r *http.Request) {
	sess, ok := gwmw.GetSession(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing editor session")
		return
	}

	var cmd editor.Command
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err := dec.Decode(&cmd); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeError(w, status, "invalid command body: "+err.Error())
		return
	}

	log := logger.FromContext(r.Context()).With("cmd", cmd.Cmd, "session", sess.String())
	ctx, span := tracing.Start(r.Context(), "editor."+cmd.Cmd, pkgmw.GetRequestID(r.Context()))
	out, err := h.editor.Execute(ctx, sess, cmd)
	span.End()
	span.Log(ctx, log)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("editor command failed", "error", err)
		} else {
			log.Info("editor command rejected", "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	log.Debug("editor command served")
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
