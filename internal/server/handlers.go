package server

import (
	"cmp"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/model"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const maxRequestBody = 1 << 20

// BatchRequest is the body of POST /api/batches. Text accepts a pasted
// list with one reference per line.
type BatchRequest struct {
	References []string `json:"references"`
	Text       string   `json:"text"`
}

// ItemReport describes one failed item.
type ItemReport struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts"`
}

// UnresolvedReport describes a reference or container entry that produced
// no item.
type UnresolvedReport struct {
	Reference string `json:"reference"`
	Title     string `json:"title,omitempty"`
	Reason    string `json:"reason"`
}

// BatchReport is the response of POST /api/batches.
type BatchReport struct {
	ID         string             `json:"id"`
	Items      int                `json:"items"`
	Succeeded  int                `json:"succeeded"`
	Failed     []ItemReport       `json:"failed"`
	Unresolved []UnresolvedReport `json:"unresolved"`
	Archive    string             `json:"archive,omitempty"`
	ArchiveURL string             `json:"archive_url,omitempty"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
	Duration   string             `json:"duration"`
}

// HistoryEntry is one element of GET /api/batches.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Items      int       `json:"items"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Unresolved int       `json:"unresolved"`
	Archive    string    `json:"archive,omitempty"`
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/batches", s.handleListBatches)
	e.POST("/api/batches", s.handleCreateBatch)
	e.GET("/api/batches/:id/archive", s.handleArchive)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"pending_archives": s.pendingCount(),
	})
}

// handleCreateBatch runs a batch synchronously and reports its outcomes.
func (s *Server) handleCreateBatch(c *echo.Context) error {
	refs, err := readReferences(c)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no references given")
	}

	batch, err := s.runner.Run(c.Request().Context(), refs, nil)
	if err != nil {
		if errors.Is(err, download.ErrNoReferences) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("batch failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "batch failed")
	}

	report := newReport(batch)
	if len(batch.Result.Successes) == 0 {
		s.release(batch)
		return c.JSON(http.StatusOK, report)
	}

	expires := s.hold(batch)
	report.Archive = batch.ArchiveName()
	report.ArchiveURL = archiveURL(c, batch.ID)
	report.ExpiresAt = &expires
	return c.JSON(http.StatusOK, report)
}

// handleArchive hands the archive out once, then deletes the artifacts.
func (s *Server) handleArchive(c *echo.Context) error {
	id := c.Param("id")
	batch, ok := s.take(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "archive not found or already collected")
	}
	defer s.release(batch)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "application/zip")
	w.Header().Set(echo.HeaderContentDisposition, contentDisposition(batch.ArchiveName()))
	w.WriteHeader(http.StatusOK)

	// headers are gone, so a failure here can only be logged
	if err := batch.WriteArchive(w); err != nil {
		s.logger.Error("failed to stream archive", "batch", id, "error", err)
		return nil
	}
	batch.MarkArchived(c.Request().Context(), batch.ArchiveName())
	return nil
}

func (s *Server) handleListBatches(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	batches, err := s.history.List(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list history")
	}

	entries := make([]HistoryEntry, 0, len(batches))
	for _, b := range batches {
		entries = append(entries, HistoryEntry{
			ID:         b.ID,
			Source:     b.Source,
			StartedAt:  b.StartedAt,
			FinishedAt: b.FinishedAt,
			Items:      b.Items,
			Succeeded:  b.Succeeded,
			Failed:     b.Failed,
			Unresolved: b.Unresolved,
			Archive:    b.Archive,
		})
	}
	return c.JSON(http.StatusOK, entries)
}

// readReferences accepts a JSON BatchRequest or a plain-text list.
func readReferences(c *echo.Context) ([]string, error) {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	if len(body) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), "text/plain") {
		return model.ParseReferences(string(body)), nil
	}

	var br BatchRequest
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	refs := model.CleanReferences(br.References)
	return append(refs, model.ParseReferences(br.Text)...), nil
}

func newReport(b *download.Batch) BatchReport {
	r := BatchReport{
		ID:         b.ID,
		Items:      b.Result.Items(),
		Succeeded:  len(b.Result.Successes),
		Failed:     make([]ItemReport, 0, len(b.Result.Failures)),
		Unresolved: make([]UnresolvedReport, 0, len(b.Result.ResolutionFailures)),
		Duration:   b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String(),
	}
	for _, f := range b.Result.Failures {
		r.Failed = append(r.Failed, ItemReport{
			Index:     f.Index,
			Title:     f.Title(),
			Reference: f.Item.FetchRef,
			Reason:    f.Reason,
			Attempts:  f.Attempts,
		})
	}
	slices.SortFunc(r.Failed, func(a, b ItemReport) int { return cmp.Compare(a.Index, b.Index) })
	for _, f := range b.Result.ResolutionFailures {
		r.Unresolved = append(r.Unresolved, UnresolvedReport{
			Reference: f.Reference,
			Title:     f.Title,
			Reason:    f.Reason,
		})
	}
	return r
}
