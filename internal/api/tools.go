package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/currency"
	"github.com/wuwenbin0122/finbot/internal/tax"
)

func (h *Handler) handleTaxEstimate(c *gin.Context) {
	var in tax.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	result, err := tax.Calculate(in)
	if err != nil {
		if errors.Is(err, tax.ErrInvalidIncome) {
			writeError(c, http.StatusBadRequest, err.Error(), err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to calculate tax", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCurrency lists the supported currencies, or converts when amount,
// from and to are given.
func (h *Handler) handleCurrency(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("amount"))
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"currencies": currency.Supported()})
		return
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "amount must be a number", err)
		return
	}

	from := strings.ToUpper(c.DefaultQuery("from", "USD"))
	to := strings.ToUpper(c.DefaultQuery("to", "INR"))
	converted, err := currency.Convert(amount, from, to)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"result":    converted,
		"formatted": currency.Format(converted, to),
	})
}
