package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

const accountKey = "account"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.logger.WithField("email", domain.NormalizeEmail(req.Email)).Warn("console login rejected")
		}
		h.writeError(c, err)
		return
	}

	token, expires, err := GenerateToken(account.ID, account.IsAdmin, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		Account:   accountToResponse(account),
	})
}

// requireStaff admits requests bearing a valid token of an active staff account.
func (h *Handler) requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseToken(strings.TrimSpace(raw), h.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		account, err := h.accounts.GetByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			h.writeError(c, err)
			c.Abort()
			return
		}
		if !account.Active || !account.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "console access requires an active staff account"})
			return
		}

		c.Set(accountKey, account)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *domain.Account {
	if v, ok := c.Get(accountKey); ok {
		if account, ok := v.(*domain.Account); ok {
			return account
		}
	}
	return nil
}
