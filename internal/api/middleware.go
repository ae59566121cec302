// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stashd/stashd/internal/access"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const ctxKeyRequestID contextKey = "request_id"

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// requestIDBytes is the number of random bytes used for request IDs.
const requestIDBytes = 8

// requestIDMiddleware attaches a request ID to every request. A client-sent
// X-Request-ID is kept; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request and feeds the request counter.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)

		if s.metrics != nil {
			// Label by route pattern, not raw path, to keep cardinality bounded.
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(wrapped.status)).Inc()
		}
	})
}

// recoveryMiddleware catches handler panics and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.ErrorContext(r.Context(), "panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware caps incoming request bodies.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the session token on protected routes. It accepts
// the Authorization header with or without the Bearer prefix, validates the
// token as a session token, and stores the resulting AuthContext in the
// request context. Every failure produces the same 401 body.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.countTokenValidation("session", "missing")
			writeTokenError(w)
			return
		}

		claims, err := s.tokens.ValidateSession(token)
		if err != nil {
			s.countTokenValidation("session", "invalid")
			s.logger.DebugContext(r.Context(), "session token rejected",
				"error", err,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			writeTokenError(w)
			return
		}

		s.countTokenValidation("session", "valid")
		ctx := access.WithAuthContext(r.Context(), access.NewAuthContext(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization header value.
// A "Bearer " prefix is stripped case-insensitively; a bare token is
// accepted as-is.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// requireAdmin enforces the ADMIN role for the request, writing the failure
// response itself. Handlers bail out when it returns false.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := s.gate.RequireAdmin(r.Context()); err != nil {
		s.countGateDecision("denied")
		if errors.Is(err, access.ErrUnauthenticated) {
			writeTokenError(w)
		} else {
			writeForbidden(w, "admin role required")
		}
		return false
	}
	s.countGateDecision("allowed")
	return true
}

func (s *Server) countGateDecision(decision string) {
	if s.metrics != nil {
		s.metrics.GateDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

func (s *Server) countTokenValidation(kind, result string) {
	if s.metrics != nil {
		s.metrics.TokenValidationsTotal.WithLabelValues(kind, result).Inc()
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// generateRequestID creates a random hex request ID.
func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
