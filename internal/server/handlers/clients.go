package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/clientboot/internal/apierrors"
	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
)

// ClientHandlers serves POST /api/clients/init.
type ClientHandlers struct {
	registry   *Registry
	cookieName string
	ttl        time.Duration
	failEvery  int64
	failCode   apierrors.Code
	requests   atomic.Int64
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewClientHandlers wires the init handler.
func NewClientHandlers(cfg config.ServerConfig, registry *Registry, recorder metrics.Recorder, logger *slog.Logger) *ClientHandlers {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	code := apierrors.Code(cfg.ErrorCode) // #nosec G115 -- validated as non-negative config
	if cfg.ErrorCode <= 0 || code == apierrors.NoError {
		code = apierrors.ServiceUnavailable
	}
	return &ClientHandlers{
		registry:   registry,
		cookieName: cfg.CookieName,
		ttl:        registry.ttl,
		failEvery:  int64(cfg.FailEvery),
		failCode:   code,
		recorder:   recorder,
		logger:     logger,
	}
}

// HandleInit initializes a client. A request presenting a live client cookie
// has its token refreshed; any other request creates a new client. Repeated
// calls are harmless.
//
//	[POST] /api/clients/init
func (h *ClientHandlers) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if n := h.requests.Add(1); h.failEvery > 0 && n%h.failEvery == 0 {
		h.logger.WarnContext(ctx, "Injected activation failure", slog.Int64("request", n))
		h.recorder.IncServedActivation(metrics.ServedInjected)
		_ = writeAPIError(w, apierrors.New(h.failCode, ""))
		return
	}

	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		if c, ok := h.registry.Refresh(cookie.Value); ok {
			h.setCookie(w, c)
			h.recorder.IncServedActivation(metrics.ServedRefreshed)
			h.logger.DebugContext(ctx, "Client token refreshed", logfields.ClientID(c.ID))
			h.ok(w)
			return
		}
		h.logger.DebugContext(ctx, "Client token expired or unknown, creating a new client", logfields.ClientID(cookie.Value))
	}

	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		h.logger.WarnContext(ctx, "User-Agent is empty", logfields.RemoteAddr(r.RemoteAddr))
		h.reject(w, apierrors.ErrBadRequest)
		return
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		h.logger.WarnContext(ctx, "Invalid remote address", logfields.RemoteAddr(r.RemoteAddr), logfields.Error(err))
		h.reject(w, apierrors.ErrBadRequest)
		return
	}

	c := h.registry.Create(ua, ip)
	h.setCookie(w, c)
	h.recorder.IncServedActivation(metrics.ServedIssued)
	h.logger.InfoContext(ctx, "Client created", logfields.ClientID(c.ID), logfields.UserAgent(ua))
	h.ok(w)
}

func (h *ClientHandlers) setCookie(w http.ResponseWriter, c Client) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    c.ID,
		Path:     "/",
		Expires:  c.ExpiresAt,
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ClientHandlers) ok(w http.ResponseWriter) {
	if err := writeJSON(w, http.StatusOK, apierrors.OK(true)); err != nil {
		h.logger.Error("Failed to write init response", logfields.Error(err))
	}
}

func (h *ClientHandlers) reject(w http.ResponseWriter, err *apierrors.ApiError) {
	h.recorder.IncServedActivation(metrics.ServedRejected)
	if werr := writeAPIError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", logfields.Error(werr))
	}
}
