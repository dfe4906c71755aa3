package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"account-console/internal/admin"
	"account-console/internal/domain"
	"account-console/internal/forms"
)

func (h *Handler) changelist(c *gin.Context) {
	params := admin.ChangelistParams{Query: c.Query("q")}
	if raw := c.Query("is_admin"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag is_admin"})
			return
		}
		params.IsAdmin = &v
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		params.Page = page
	}

	cl, err := h.admin.Changelist(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) addView(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Detail(nil))
}

func (h *Handler) changeView(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.admin.Detail(account))
}

func (h *Handler) createAccount(c *gin.Context) {
	h.submit(c, nil, http.StatusCreated)
}

func (h *Handler) updateAccount(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}
	h.submit(c, account, http.StatusOK)
}

// submit runs the add or change form for obj and saves it.
func (h *Handler) submit(c *gin.Context, obj *domain.Account, status int) {
	form, err := h.admin.GetForm(obj, func(v any) error { return c.ShouldBindJSON(v) })
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !form.IsValid(c.Request.Context()) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": form.Errors()})
		return
	}

	saved, err := form.Save(c.Request.Context(), true)
	if err != nil {
		h.writeError(c, err)
		return
	}

	logger := h.logger.WithField("account_id", saved.ID)
	if actor := currentAccount(c); actor != nil {
		logger = logger.WithField("actor_id", actor.ID)
	}
	if obj == nil {
		logger.Info("account added from console")
	} else {
		logger.Info("account changed from console")
	}
	c.JSON(status, accountToResponse(saved))
}

func (h *Handler) setPassword(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}

	var input forms.SetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form := h.admin.SetPasswordForm(h.accounts, account, input)
	if !form.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": form.Errors()})
		return
	}
	if err := form.Save(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": account.ID, "password_changed": true})
}

func (h *Handler) loadAccount(c *gin.Context) (*domain.Account, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return nil, false
	}

	account, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return account, true
}
