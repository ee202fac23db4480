package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/models"
)

var (
	errInvalidID     = errors.New("id must be a positive integer")
	errZeroAmount    = errors.New("amount must not be zero")
	errUnknownType   = errors.New("type must be income or expense")
	errTickerMissing = errors.New("ticker is required")
)

type transactionRequest struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Date        time.Time       `json:"date"`
}

type holdingRequest struct {
	Name   string          `json:"name"`
	Ticker string          `json:"ticker"`
	Value  decimal.Decimal `json:"value"`
	Gain   decimal.Decimal `json:"gain"`
}

func (h *Handler) handleListTransactions(c *gin.Context) {
	if h.ledger == nil {
		writeError(c, http.StatusServiceUnavailable, "ledger unavailable", errNotConfigured)
		return
	}

	txs, err := h.ledger.ListTransactions(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) handleAddTransaction(c *gin.Context) {
	if h.ledger == nil {
		writeError(c, http.StatusServiceUnavailable, "ledger unavailable", errNotConfigured)
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if req.Amount.IsZero() {
		writeError(c, http.StatusBadRequest, errZeroAmount.Error(), errZeroAmount)
		return
	}

	kind := models.TransactionType(strings.ToLower(strings.TrimSpace(req.Type)))
	switch kind {
	case "", models.TransactionIncome, models.TransactionExpense:
	default:
		writeError(c, http.StatusBadRequest, errUnknownType.Error(), errUnknownType)
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	id := identity(c)
	tx, err := h.ledger.AddTransaction(c.Request.Context(), id.UserID, models.Transaction{
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Amount:      req.Amount,
		Type:        kind,
		Date:        req.Date,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to add transaction", err)
		return
	}
	h.invalidateSummary(c, id.UserID)

	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) handleDeleteTransaction(c *gin.Context) {
	h.deleteLedgerEntry(c, func(userID string, id int64) error {
		return h.ledger.DeleteTransaction(c.Request.Context(), userID, id)
	})
}

func (h *Handler) handleListHoldings(c *gin.Context) {
	if h.ledger == nil {
		writeError(c, http.StatusServiceUnavailable, "ledger unavailable", errNotConfigured)
		return
	}

	holdings, err := h.ledger.ListHoldings(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list holdings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

func (h *Handler) handleAddHolding(c *gin.Context) {
	if h.ledger == nil {
		writeError(c, http.StatusServiceUnavailable, "ledger unavailable", errNotConfigured)
		return
	}

	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(c, http.StatusBadRequest, errTickerMissing.Error(), errTickerMissing)
		return
	}

	id := identity(c)
	holding, err := h.ledger.AddHolding(c.Request.Context(), id.UserID, models.Holding{
		Name:   strings.TrimSpace(req.Name),
		Ticker: ticker,
		Value:  req.Value,
		Gain:   req.Gain,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to add holding", err)
		return
	}
	h.invalidateSummary(c, id.UserID)

	c.JSON(http.StatusCreated, gin.H{
		"holding":     holding,
		"gainPercent": finance.GainPercent(holding.Value, holding.Gain),
	})
}

func (h *Handler) handleDeleteHolding(c *gin.Context) {
	h.deleteLedgerEntry(c, func(userID string, id int64) error {
		return h.ledger.DeleteHolding(c.Request.Context(), userID, id)
	})
}

func (h *Handler) deleteLedgerEntry(c *gin.Context, del func(userID string, id int64) error) {
	if h.ledger == nil {
		writeError(c, http.StatusServiceUnavailable, "ledger unavailable", errNotConfigured)
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || entryID <= 0 {
		writeError(c, http.StatusBadRequest, errInvalidID.Error(), errInvalidID)
		return
	}

	userID := identity(c).UserID
	if err := del(userID, entryID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "entry not found", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to delete entry", err)
		return
	}
	h.invalidateSummary(c, userID)

	c.Status(http.StatusNoContent)
}

func (h *Handler) invalidateSummary(c *gin.Context, userID string) {
	if h.finance != nil {
		h.finance.Invalidate(c.Request.Context(), userID)
	}
}

func (h *Handler) handleFinanceSummary(c *gin.Context) {
	if h.finance == nil {
		writeError(c, http.StatusServiceUnavailable, "financial data unavailable", errNotConfigured)
		return
	}

	summary, err := h.finance.Summary(c.Request.Context(), identity(c))
	if err != nil {
		if errors.Is(err, finance.ErrNoData) {
			writeError(c, http.StatusNotFound, "no data available", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to summarise finances", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
