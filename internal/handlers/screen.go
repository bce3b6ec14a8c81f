package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"grahamscreen/internal/analyzer"
	"grahamscreen/internal/db"
)

const defaultConcurrency = 4

// ScreenHandler exposes the analysis pipeline over HTTP. The repository is
// optional; without it reports are computed but not persisted.
type ScreenHandler struct {
	analyzer *analyzer.Analyzer
	repo     *db.Repository
}

// NewScreenHandler creates a new screen handler.
func NewScreenHandler(a *analyzer.Analyzer, repo *db.Repository) *ScreenHandler {
	return &ScreenHandler{analyzer: a, repo: repo}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ScreenTicker handles GET /screen/:ticker
// Runs the full fetch-analyze pipeline for one ticker and persists the
// resulting reports when a database is configured.
func (h *ScreenHandler) ScreenTicker(c echo.Context) error {
	ctx := c.Request().Context()
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "ticker is required",
		})
	}

	start := time.Now()
	an, err := h.analyzer.Analyze(ctx, ticker)
	if err != nil {
		log.Printf("Error analyzing %s: %v", ticker, err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: fmt.Sprintf("Failed to analyze %s: %v", ticker, err),
		})
	}
	log.Printf("Analyzed %s in %v (qualifies=%t)", ticker, time.Since(start), an.Defensive.Qualifies)

	h.persist(ctx, an)
	return c.JSON(http.StatusOK, an)
}

// ScreenBatchResponse is the JSON response of a multi-ticker run.
type ScreenBatchResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Elapsed string        `json:"elapsed"`
	Results []BatchResult `json:"results"`
}

// BatchResult is one ticker's outcome in a batch run.
type BatchResult struct {
	Ticker   string             `json:"ticker"`
	Error    string             `json:"error,omitempty"`
	Analysis *analyzer.Analysis `json:"analysis,omitempty"`
}

// ScreenBatch handles POST /screen
// Query params:
// - ticker: comma-separated tickers (optional, defaults to all stored companies)
func (h *ScreenHandler) ScreenBatch(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	var tickers []string
	if tickerParam := c.QueryParam("ticker"); tickerParam != "" {
		for _, t := range strings.Split(tickerParam, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				tickers = append(tickers, t)
			}
		}
	} else if h.repo != nil {
		var err error
		tickers, err = h.repo.GetAllTickers(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Message: fmt.Sprintf("Failed to get tickers: %v", err),
			})
		}
	}

	if len(tickers) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "no tickers to screen",
		})
	}

	log.Printf("Screening %d tickers...", len(tickers))
	results := h.analyzer.AnalyzeMany(ctx, tickers, defaultConcurrency)

	resp := ScreenBatchResponse{Success: true, Count: len(results)}
	for _, r := range results {
		br := BatchResult{Ticker: r.Ticker, Analysis: r.Analysis}
		if r.Err != nil {
			br.Error = r.Err.Error()
		} else {
			h.persist(ctx, r.Analysis)
		}
		resp.Results = append(resp.Results, br)
	}

	resp.Elapsed = time.Since(start).String()
	log.Printf("Screened %d tickers in %s", len(tickers), resp.Elapsed)
	return c.JSON(http.StatusOK, resp)
}

// LatestReport handles GET /reports/:ticker
// Query params:
// - rule_set: graham_defensive (default) or buffett_quality
func (h *ScreenHandler) LatestReport(c echo.Context) error {
	if h.repo == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "no database configured",
		})
	}

	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	ruleSet := c.QueryParam("rule_set")
	if ruleSet == "" {
		ruleSet = "graham_defensive"
	}

	rep, createdAt, err := h.repo.LatestReport(c.Request().Context(), ticker, ruleSet)
	if errors.Is(err, db.ErrNoReport) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Message: fmt.Sprintf("no %s report for %s", ruleSet, ticker),
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: fmt.Sprintf("Failed to load report: %v", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"report":     rep,
		"created_at": createdAt,
	})
}

// Status handles GET /screen/status
func (h *ScreenHandler) Status(c echo.Context) error {
	if h.repo == nil {
		return c.JSON(http.StatusOK, map[string]any{"database": false})
	}

	ctx := c.Request().Context()
	companies, err := h.repo.GetCompanyCount(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: fmt.Sprintf("Failed to count companies: %v", err),
		})
	}
	reports, err := h.repo.GetReportCount(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: fmt.Sprintf("Failed to count reports: %v", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"database":  true,
		"companies": companies,
		"reports":   reports,
	})
}

// persist stores the company row and both reports, logging instead of
// failing the request when the database is unavailable.
func (h *ScreenHandler) persist(ctx context.Context, an *analyzer.Analysis) {
	if h.repo == nil || an == nil {
		return
	}
	if err := h.repo.UpsertCompany(ctx, an.Snapshot); err != nil {
		log.Printf("Warning: could not upsert company %s: %v", an.Snapshot.Ticker, err)
		return
	}
	if err := h.repo.SaveReports(ctx, an.Defensive, an.Quality); err != nil {
		log.Printf("Warning: could not save reports for %s: %v", an.Snapshot.Ticker, err)
	}
}
