package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/bookrec"
)

// defaultRecommendK is the neighbor count used when a request omits k.
const defaultRecommendK = 5

type errorResponse struct {
	Error string `json:"error"`
}

// newRouter builds the HTTP API around an engine.
func newRouter(eng *bookrec.Engine, logger *bookrec.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/health", handleHealth(eng))
			r.Get("/recommend", handleRecommend(eng))
			r.Get("/top", handleTop(eng))
			r.Get("/titles", handleTitles(eng))
		})

		// Rebuild runs synchronously and can take minutes on the full
		// dataset, so it is mounted outside the timeout group.
		r.Post("/rebuild", handleRebuild(eng, logger))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func handleHealth(eng *bookrec.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := eng.Stats()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleRecommend(eng *bookrec.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("title")
		if title == "" {
			writeError(w, http.StatusBadRequest, errors.New("missing title parameter"))
			return
		}

		k := defaultRecommendK
		if raw := r.URL.Query().Get("k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, errors.New("k must be a positive integer"))
				return
			}
			k = n
		}

		result, err := eng.Recommend(r.Context(), title, k)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		// An unknown title is a valid 200 response with status "not_found":
		// the client decides how to present it.
		writeJSON(w, http.StatusOK, result)
	}
}

func handleTop(eng *bookrec.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, errors.New("n must be a positive integer"))
				return
			}
			n = v
		}

		books, err := eng.TopRated(r.Context(), n)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	}
}

func handleTitles(eng *bookrec.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		titles, err := eng.KnownTitles()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, titles)
	}
}

func handleRebuild(eng *bookrec.Engine, logger *bookrec.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := eng.Rebuild(r.Context())
		switch {
		case errors.Is(err, bookrec.ErrRebuildInProgress):
			writeError(w, http.StatusConflict, err)
		case err != nil:
			logger.ErrorContext(r.Context(), "rebuild failed", "error", err)
			writeError(w, http.StatusInternalServerError, err)
		default:
			stats, statsErr := eng.Stats()
			if statsErr != nil {
				writeError(w, http.StatusInternalServerError, statsErr)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		}
	}
}
