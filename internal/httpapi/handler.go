package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"uptime": time.Since(a.started).Round(time.Second).String(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) snapshot(c *gin.Context) {
	if a.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, a.metrics.Snapshot())
}

func (a *API) candles(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	entry, err := a.windows.Window(ctx, symbol)
	if err != nil {
		if errors.Is(err, exception.ErrCacheEmptyEntry) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a *API) historyRange(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	if a.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}
	from := to.Add(-time.Hour)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if from.After(to) || to.Sub(from) > maxHistorySpan {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	candles, err := a.history.Range(ctx, symbol, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, candles)
}

func (a *API) prices(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res := a.reader.LastPrices(ctx, symbol)
	c.JSON(http.StatusOK, res)
}

func (a *API) last(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res := a.reader.LastCandle(ctx, symbol)
	c.JSON(http.StatusOK, res)
}

func symbolParam(c *gin.Context) (string, bool) {
	symbol := c.Param("symbol")
	if !model.ValidSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return "", false
	}
	return symbol, true
}
