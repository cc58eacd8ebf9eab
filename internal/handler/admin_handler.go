package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/service"
	"go.uber.org/zap"
)

type loginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type blocksPayload struct {
	Blocks []service.BlockInput `json:"blocks"`
}

// Login 校验管理员账号并写入会话。
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid login payload")
		return
	}

	user, err := db.Authenticate(a.db, payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, db.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "invalid username or password")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "login failed")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	a.logger.Info("admin logged in", zap.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Logout 清空会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get("user_id") == nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ListPages returns every page ordered by full path, or only root pages with ?roots=1.
func (a *API) ListPages(c *gin.Context) {
	list := a.pages.List
	if c.Query("roots") == "1" {
		list = a.pages.ListRoots
	}
	pages, err := list(c.Request.Context())
	if err != nil {
		a.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// GetPage returns one page with its blocks.
func (a *API) GetPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := a.pages.GetByID(c.Request.Context(), id)
	if err != nil {
		a.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// CreatePage creates a page from a JSON payload.
func (a *API) CreatePage(c *gin.Context) {
	var input service.PageInput
	if !bindJSON(c, &input, "invalid page payload") {
		return
	}

	page, err := a.pages.Create(c.Request.Context(), input)
	if err != nil {
		a.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

// UpdatePage replaces the editable fields of a page.
func (a *API) UpdatePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var input service.PageInput
	if !bindJSON(c, &input, "invalid page payload") {
		return
	}

	page, err := a.pages.Update(c.Request.Context(), id, input)
	if err != nil {
		a.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// DeletePage removes a leaf page.
func (a *API) DeletePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.pages.Delete(c.Request.Context(), id); err != nil {
		a.respondPageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReplaceBlocks swaps the repeater blocks of a page.
func (a *API) ReplaceBlocks(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload blocksPayload
	if !bindJSON(c, &payload, "invalid blocks payload") {
		return
	}

	page, err := a.pages.ReplaceBlocks(c.Request.Context(), id, payload.Blocks)
	if err != nil {
		a.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}
