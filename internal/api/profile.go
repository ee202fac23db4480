package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/models"
	"github.com/wuwenbin0122/finbot/internal/persona"
)

func (h *Handler) handleGetProfile(c *gin.Context) {
	if h.profiles == nil {
		writeError(c, http.StatusServiceUnavailable, "profiles unavailable", errNotConfigured)
		return
	}

	profile, err := h.profiles.GetProfile(c.Request.Context(), identity(c).UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "profile not found", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to load profile", err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *Handler) handleSaveProfile(c *gin.Context) {
	if h.profiles == nil {
		writeError(c, http.StatusServiceUnavailable, "profiles unavailable", errNotConfigured)
		return
	}

	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	id := identity(c)
	profile = profile.Normalize()
	profile.UserID = id.UserID
	if err := profile.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctx := c.Request.Context()
	if err := h.profiles.SaveProfile(ctx, profile); err != nil {
		writeError(c, http.StatusInternalServerError, "failed to save profile", err)
		return
	}
	if h.finance != nil {
		h.finance.Invalidate(ctx, id.UserID)
	}

	restarted := false
	if h.chats != nil {
		var err error
		restarted, err = h.chats.ProfileChanged(ctx, id, profile)
		if err != nil {
			h.logger.Warnw("restart chat after persona change", "user_id", id.UserID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":       profile,
		"chatRestarted": restarted,
	})
}

func (h *Handler) handleEnsureProfile(c *gin.Context) {
	if h.profiles == nil {
		writeError(c, http.StatusServiceUnavailable, "profiles unavailable", errNotConfigured)
		return
	}

	created, err := h.profiles.EnsureProfile(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to ensure profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (h *Handler) handleTopics(c *gin.Context) {
	p := models.PersonaStudent
	if h.profiles != nil {
		if profile, err := h.profiles.GetProfile(c.Request.Context(), identity(c).UserID); err == nil {
			p = profile.Persona
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"persona":      p,
		"topics":       persona.SuggestedTopics(p),
		"incomeRanges": models.IncomeRanges(),
	})
}
