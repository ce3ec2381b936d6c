package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Headers set by the upstream proxy once it authenticated the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserAdmin = "X-User-Admin"
	HeaderCommunity = "X-Community-ID"
)

type ctxKey int

const (
	requesterKey ctxKey = iota
	communityKey
)

// Identify reads the requester and community headers into the context.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, _ := strconv.ParseBool(r.Header.Get(HeaderUserAdmin))
		req := model.Requester{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Admin:  admin,
		}
		ctx := context.WithValue(r.Context(), requesterKey, req)
		ctx = context.WithValue(ctx, communityKey, strings.TrimSpace(r.Header.Get(HeaderCommunity)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests without a user ID.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requesterFrom(r.Context()).UserID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requesterFrom(ctx context.Context) model.Requester {
	req, _ := ctx.Value(requesterKey).(model.Requester)
	return req
}

func communityFrom(ctx context.Context) string {
	c, _ := ctx.Value(communityKey).(string)
	return c
}

// Logger writes one structured access log line per request.
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// CORS is a permissive policy for browser clients.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", HeaderUserID, HeaderUserAdmin, HeaderCommunity,
		}, ", "))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
