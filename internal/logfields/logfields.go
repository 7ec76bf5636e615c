package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyState       = "state"
	KeyLeaseToken  = "lease_token"
	KeyOutcome     = "outcome"
	KeyAttempt     = "attempt"
	KeyKey         = "key"
	KeyBackend     = "backend"
	KeyURL         = "url"
	KeyRequestID   = "request_id"
	KeyClientID    = "client_id"
	KeyStatus      = "status"
	KeyMethod      = "method"
	KeyPath        = "path"
	KeyRemoteAddr  = "remote_addr"
	KeyUserAgent   = "user_agent"
	KeyInstance    = "instance"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
	KeyActivations = "activations"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func LeaseToken(t string) slog.Attr    { return slog.String(KeyLeaseToken, t) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Key(k string) slog.Attr           { return slog.String(KeyKey, k) }
func Backend(b string) slog.Attr       { return slog.String(KeyBackend, b) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func ClientID(id string) slog.Attr     { return slog.String(KeyClientID, id) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func Instance(id int) slog.Attr        { return slog.Int(KeyInstance, id) }
func Activations(n int) slog.Attr      { return slog.Int(KeyActivations, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
