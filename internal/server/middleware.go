package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/metrics"
)

// NewAdminMiddleware guards admin routes: the caller must come from loopback
// or an allowlisted CIDR and, when token is set, present it as a bearer token.
func NewAdminMiddleware(token, allowlist string) func(http.Handler) http.Handler {
	guard := &adminMiddleware{token: token, allowed: parseAllowlist(allowlist)}
	return guard.wrap
}

type adminMiddleware struct {
	token   string
	allowed []*net.IPNet
}

func (m *adminMiddleware) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := parseRemoteIP(r.RemoteAddr)
		if !m.isAllowed(ip) {
			RespondError(w, http.StatusForbidden, "FORBIDDEN_IP", "request IP not allowed")
			return
		}

		if m.token != "" {
			provided, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
				return
			}
			if provided != m.token {
				RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *adminMiddleware) isAllowed(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsLoopback() {
		return true
	}

	for _, network := range m.allowed {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// requireAPIKey rejects /v1 calls whose bearer token does not match token.
// An empty token leaves the API open.
func requireAPIKey(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if provided, ok := bearerToken(r.Header.Get("Authorization")); !ok || provided != token {
			respondAPIError(w, http.StatusUnauthorized, "invalid_api_key", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), true
}

func parseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil {
		return net.ParseIP(host)
	}

	return net.ParseIP(remoteAddr)
}

func parseAllowlist(raw string) []*net.IPNet {
	var networks []*net.IPNet

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			continue
		}
		networks = append(networks, network)
	}

	return networks
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (r *responseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logRequests(logger *logrus.Entry, rec metrics.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rr, r)
		elapsed := time.Since(start)

		// ServeMux records the matched pattern on r; unmatched paths share one label
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveRequest(route, rr.status, elapsed)

		entry := logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rr.status,
			"bytes":  rr.bytes,
			"dur":    elapsed.Round(time.Millisecond),
		})
		// health probes arrive every poll interval
		if r.URL.Path == "/health" {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	})
}
