package ddnsrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
)

const defaultTimeout = 30 * time.Second

// Handler is the relay endpoint.
// It answers on any path and method.
//
// It should be constructed using NewHandler.
type Handler struct {
	updater Updater
	auth    Authenticator
	trusted []netip.Prefix
	timeout time.Duration
	logger  logr.Logger
}

type handlerOption func(*Handler) error

// NewHandler returns a Handler that authenticates callers with auth and passes updates to updater.
func NewHandler(updater Updater, auth Authenticator, options ...handlerOption) (*Handler, error) {
	if updater == nil {
		return nil, errors.New("ddnsrelay.NewHandler: updater cannot be nil")
	}
	if auth == nil {
		return nil, errors.New("ddnsrelay.NewHandler: authenticator cannot be nil")
	}
	h := &Handler{
		updater: updater,
		auth:    auth,
		timeout: defaultTimeout,
		logger:  logr.Discard(),
	}
	for i, opt := range options {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("ddnsrelay.NewHandler: option %d returned an error: %w", i, err)
		}
	}
	return h, nil
}

// WithLogger sets the logger for request outcomes and failed logins.
func WithLogger(logger logr.Logger) handlerOption {
	return func(h *Handler) error {
		if logger.GetSink() == nil {
			logger = logr.Discard()
		}
		h.logger = logger
		return nil
	}
}

// WithTrustedProxies limits X-Real-IP and X-Forwarded-For to requests from the given CIDRs or addresses.
// See ClientIP.
func WithTrustedProxies(cidrs ...string) handlerOption {
	return func(h *Handler) error {
		prefixes, err := ParsePrefixes(cidrs...)
		if err != nil {
			return err
		}
		h.trusted = prefixes
		return nil
	}
}

// WithTimeout bounds how long a single update may take. Zero or less keeps the default.
func WithTimeout(d time.Duration) handlerOption {
	return func(h *Handler) error {
		if d > 0 {
			h.timeout = d
		}
		return nil
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := ClientIP(r, h.trusted)

	username, password, ok := r.BasicAuth()
	if !ok || !h.auth.Authenticate(username, password) {
		authFailureCount.Inc()
		if ok {
			h.logger.Info("failed login attempt", "username", username, "clientIP", clientIP)
		} else {
			h.logger.Info("no authorization provided", "clientIP", clientIP)
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Authentication Required"`)
		h.respond(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	domain := r.URL.Query().Get("domain")
	h.logger.Info("update requested", "username", username, "clientIP", clientIP, "domain", domain)

	if domain == "" || domain == placeholderDomain {
		h.logger.Info("no valid domain provided, DNS not updated", "clientIP", clientIP)
		h.respond(w, http.StatusBadRequest, "No valid domain provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	msg, err := h.updater.Update(ctx, domain, clientIP)
	if err != nil {
		h.logger.Error(err, "DNS update failed", "domain", domain, "clientIP", clientIP)
		h.respond(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}
	h.respond(w, http.StatusOK, msg)
}

func (h *Handler) respond(w http.ResponseWriter, code int, body string) {
	recordRequest(code)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, body)
}
