package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"glbfolio/internal/logger"
	"glbfolio/internal/runner"
	"glbfolio/internal/store/gormstore"
)

type handlers struct {
	runner *runner.Runner
	store  *gormstore.GormStore
}

func (h *handlers) cron(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context())
	if err != nil {
		logger.Errorf("http: cron run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"tickers": summary.Tickers,
		"applied": summary.PlanItems,
		"equity":  summary.Equity,
		"cash":    summary.Cash,
	})
}

func (h *handlers) refreshPrices(c *gin.Context) {
	updated, err := h.runner.RefreshPrices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "updated": updated})
}

type positionView struct {
	Ticker      string          `json:"ticker"`
	Exchange    string          `json:"exchange"`
	Qty         decimal.Decimal `json:"qty"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	LastClose   decimal.Decimal `json:"last_close"`
	MarketValue decimal.Decimal `json:"market_value"`
	Unrealized  decimal.Decimal `json:"unrealized_pnl"`
}

func (h *handlers) portfolio(c *gin.Context) {
	ctx := c.Request.Context()
	pf, err := h.runner.PortfolioRecord(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	open, err := h.store.OpenPositions(ctx, pf.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ids := make([]int64, 0, len(open))
	for _, p := range open {
		ids = append(ids, p.SymbolID)
	}
	latest, err := h.store.LatestCloseBySymbolID(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	equity := pf.CashCurrent
	views := make([]positionView, 0, len(open))
	for _, p := range open {
		last, ok := latest[p.SymbolID]
		mv := p.MarketValue(last, ok)
		equity = equity.Add(mv)
		view := positionView{
			Ticker:      p.Ticker,
			Exchange:    p.Exchange,
			Qty:         p.Qty,
			AvgCost:     p.AvgCost,
			MarketValue: mv,
		}
		if ok {
			view.LastClose = last
			view.Unrealized = last.Sub(p.AvgCost).Mul(p.Qty)
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolio_id":  pf.ID,
		"name":          pf.Name,
		"base_currency": pf.BaseCurrency,
		"cash":          pf.CashCurrent,
		"equity":        equity,
		"positions":     views,
	})
}

func (h *handlers) runs(c *gin.Context) {
	ctx := c.Request.Context()
	pf, err := h.runner.PortfolioRecord(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.store.RecentRunLogs(ctx, pf.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *handlers) equityHistory(c *gin.Context) {
	ctx := c.Request.Context()
	pf, err := h.runner.PortfolioRecord(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "365"))
	history, err := h.store.EquityHistory(ctx, pf.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
