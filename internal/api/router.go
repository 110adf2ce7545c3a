package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"stockview/internal/insight"
	"stockview/internal/market"
	"stockview/internal/snapshot"
	"stockview/internal/store"
)

// snapshotView is the wire shape handed to whatever renders the table and
// chart. Formatting lives here and nowhere deeper: the dollar prefix on the
// position value and the "N/A" placeholders exist only at this boundary.
type snapshotView struct {
	Ticker         string    `json:"ticker"`
	Shares         string    `json:"shares"`
	Price          float64   `json:"price"`
	PrevClose      float64   `json:"prev_close"`
	AnalystTarget  *float64  `json:"analyst_target,omitempty"`
	FetchedAt      string    `json:"fetched_at"`
	PositionValue  string    `json:"position_value"`
	DailyChangeAbs string    `json:"daily_change_abs"`
	DailyChangePct string    `json:"daily_change_pct"`
	TargetDelta    string    `json:"target_delta"`
	History        []barView `json:"history"`
}

type barView struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type CommentaryRequest struct {
	Ticker string `json:"ticker"`
	Shares string `json:"shares"`
}

func RegisterRoutes(h *server.Hertz, svc *snapshot.Service, st *store.Store, agent *insight.Agent, displayDays int) {
	if displayDays <= 0 {
		displayDays = 200
	}

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(200, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/snapshot", func(ctx context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "snapshot service not configured",
			})
			return
		}
		ticker := string(c.Query("ticker"))
		shares := string(c.Query("shares"))
		if shares == "" {
			shares = "0"
		}
		days, err := parseDays(c.Query("days"), displayDays)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}

		snap, err := svc.GetSnapshot(ctx, ticker, shares)
		if err != nil {
			c.JSON(statusFor(err), map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":       true,
			"snapshot": buildView(snap, days),
		})
	})

	h.GET("/api/v1/quotes/recent", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		ticker := strings.ToUpper(strings.TrimSpace(string(c.Query("ticker"))))
		if ticker == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "ticker is required",
			})
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		offset, err := parseOffset(c.Query("offset"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.RecentQuotes(ticker, limit, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.POST("/api/v1/commentary", func(ctx context.Context, c *app.RequestContext) {
		if svc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "snapshot service not configured",
			})
			return
		}
		var req CommentaryRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}
		if req.Shares == "" {
			req.Shares = "0"
		}
		snap, err := svc.GetSnapshot(ctx, req.Ticker, req.Shares)
		if err != nil {
			c.JSON(statusFor(err), map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}

		input := commentaryInput(snap)
		commentary := insight.Fallback(input)
		mode := "fallback"
		if agent != nil {
			if out, err := agent.Evaluate(ctx, input); err == nil {
				commentary = out
				mode = "llm"
			} else {
				log.Printf("insight eval error: %v", err)
			}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":         true,
			"mode":       mode,
			"commentary": commentary,
		})
	})
}

func buildView(snap snapshot.Snapshot, days int) snapshotView {
	view := snapshotView{
		Ticker:         snap.Ticker,
		Shares:         snap.Shares.String(),
		Price:          snap.Quote.Price,
		PrevClose:      snap.Quote.PrevClose,
		AnalystTarget:  snap.Quote.AnalystTarget,
		FetchedAt:      snap.Quote.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
		PositionValue:  "$" + snap.Metrics.PositionValue.StringFixed(2),
		DailyChangeAbs: snap.Metrics.DailyChangeAbs.StringFixed(2),
		DailyChangePct: "N/A",
		TargetDelta:    "N/A",
	}
	if snap.Metrics.DailyChangePct != nil {
		view.DailyChangePct = snap.Metrics.DailyChangePct.StringFixed(2)
	}
	if snap.Metrics.TargetDelta != nil {
		view.TargetDelta = snap.Metrics.TargetDelta.StringFixed(2)
	}

	// The chart shows a trailing display window of the wider fetch.
	bars := snap.History
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	view.History = make([]barView, 0, len(bars))
	for _, b := range bars {
		view.History = append(view.History, barView{
			Date:  b.Date.Format("2006-01-02"),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return view
}

func commentaryInput(snap snapshot.Snapshot) insight.Input {
	in := insight.Input{
		Ticker:   snap.Ticker,
		Price:    snap.Quote.Price,
		BarCount: len(snap.History),
	}
	if snap.Metrics.DailyChangePct != nil {
		v := snap.Metrics.DailyChangePct.StringFixed(2)
		in.DailyChangePct = &v
	}
	if snap.Metrics.TargetDelta != nil {
		v := snap.Metrics.TargetDelta.StringFixed(2)
		in.TargetDelta = &v
	}
	return in
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrInvalidTicker), errors.Is(err, snapshot.ErrInvalidShares):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseDays(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid days")
	}
	return v, nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
