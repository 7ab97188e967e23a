// Package locker_api exposes the services over JSON/HTTP.
package locker_api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/services/groups"
	"github.com/BearBump/LockerTrack/internal/services/importer"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/services/lockers"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/BearBump/LockerTrack/internal/services/statuses"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Services struct {
	Statuses *statuses.Service
	Groups   *groups.Service
	Packages *packages.Service
	Ledger   *ledger.Engine
	Lockers  *lockers.Service
	Importer *importer.Importer
}

type Options struct {
	// LookupLimitPerMinute caps public tracking lookups per client address.
	// Zero disables the limit.
	LookupLimitPerMinute int64
	MaxImportBytes       int64
}

type API struct {
	svc      Services
	verifier *auth.Verifier
	limiter  RateLimiter
	opts     Options
	log      *zap.Logger
}

func New(svc Services, verifier *auth.Verifier, limiter RateLimiter, opts Options, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = 10 << 20
	}
	return &API{svc: svc, verifier: verifier, limiter: limiter, opts: opts, log: log}
}

// Routes mounts every endpoint on r.
func (a *API) Routes(r chi.Router) {
	// No RealIP: the lookup limiter keys on the socket address.
	r.Use(middleware.RequestID, echoRequestID, a.accessLog, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(a.rateLimit).Get("/tracking/{tracking}", a.trackingView)

	r.Group(func(r chi.Router) {
		r.Use(a.verifier.Middleware)

		r.Route("/me", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleClient))
			r.Get("/locker", a.myLocker)
			r.Get("/packages", a.myPackages)
			r.Get("/packages/{id}/history", a.myPackageHistory)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))

			r.Route("/statuses", func(r chi.Router) {
				r.Get("/", a.listStatuses)
				r.Post("/", a.createStatus)
				r.Get("/{id}", a.getStatus)
				r.Patch("/{id}", a.updateStatus)
				r.Delete("/{id}", a.deactivateStatus)
			})
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", a.listGroups)
				r.Post("/", a.createGroup)
				r.Get("/{id}", a.getGroup)
				r.Patch("/{id}", a.updateGroup)
				r.Delete("/{id}", a.deactivateGroup)
			})
			r.Route("/packages", func(r chi.Router) {
				r.Get("/", a.listPackages)
				r.Post("/", a.createPackage)
				r.Post("/import", a.importPackages)
				r.Post("/status", a.transitionMultiple)
				r.Post("/deactivate", a.deactivatePackages)
				r.Get("/by-tracking/{tracking}", a.getPackageByTracking)
				r.Get("/{id}", a.getPackage)
				r.Patch("/{id}", a.updatePackage)
				r.Delete("/{id}", a.deactivatePackage)
				r.Post("/{id}/status", a.transition)
				r.Get("/{id}/history", a.packageHistory)
			})
			r.Route("/history", func(r chi.Router) {
				r.Get("/", a.listHistory)
				r.Get("/{id}", a.getHistoryEntry)
				r.Patch("/{id}", a.updateHistoryEntry)
				r.Delete("/{id}", a.deactivateHistoryEntry)
			})
			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", a.listAssignments)
				r.Post("/", a.assign)
				r.Get("/{id}", a.getAssignment)
				r.Patch("/{id}", a.updateAssignment)
				r.Delete("/{id}", a.unassign)
			})
			r.Get("/lockers/{id}", a.getLocker)
		})
	})
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || a.opts.LookupLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		key := "lookup:" + host + ":" + time.Now().UTC().Format("200601021504")
		ok, n, err := a.limiter.Allow(r.Context(), key, a.opts.LookupLimitPerMinute, 70*time.Second)
		if err != nil {
			a.log.Warn("rate limiter unavailable", zap.Error(err))
		} else if !ok {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Reason:  "rate_limited",
				Message: "too many lookups, try again in a minute (" + strconv.FormatInt(n, 10) + " this minute)",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	OK      bool   `json:"ok"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperrors.Error
	body := errorBody{Reason: string(apperrors.ReasonOf(err)), Message: err.Error()}
	if errors.As(err, &ae) {
		body.Message = ae.Message
		body.Detail = ae.Detail()
	}

	code := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		code = http.StatusNotFound
	case apperrors.KindValidation:
		code = http.StatusBadRequest
	default:
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, code, body)
}

func writeOK(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Invalid("malformed JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Invalid("%s must be an integer", name)
	}
	return n, nil
}

func optionalID(v string, name string) (*uint64, error) {
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return nil, apperrors.Invalid("%s must be a positive integer", name)
	}
	return &id, nil
}

func actingUser(r *http.Request) *string {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	s := id.ActingUser()
	return &s
}
