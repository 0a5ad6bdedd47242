// Package handlers exposes the internal lifecycle API. This is the surface
// the game-facing frontends and the companion bot call; it is not the game's
// own wire protocol.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"log/slog"

	"github.com/KiwifruitDev/arkham-revived/internal/identity"
	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/KiwifruitDev/arkham-revived/internal/storage"
	"github.com/KiwifruitDev/arkham-revived/internal/workflow"
)

type Handler struct {
	Resolver  *identity.Resolver
	Users     storage.UserStore
	Boards    *leaderboard.Engine
	Workflows *workflow.Service
	Logger    *slog.Logger
}

func New(resolver *identity.Resolver, users storage.UserStore, boards *leaderboard.Engine, workflows *workflow.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Resolver:  resolver,
		Users:     users,
		Boards:    boards,
		Workflows: workflows,
		Logger:    logger,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/accounts/resolve", h.ResolveAccount)
	v1.GET("/accounts/:uuid", h.GetAccount)
	v1.PUT("/accounts/:uuid/save", h.PutSave)
	v1.PUT("/accounts/:uuid/persistent", h.PutPersistent)
	v1.PUT("/accounts/:uuid/discord", h.PutDiscord)
	v1.POST("/accounts/:uuid/migrate", h.RequestMigration)
	v1.POST("/accounts/:uuid/delete", h.RequestDeletion)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resolveRequest struct {
	Ticket   string `json:"ticket" binding:"required"`
	Persona  string `json:"persona"`
	SteamID  string `json:"steam_id"`
	WBID     string `json:"wbid"`
	Location string `json:"location"`
}

type accountResponse struct {
	UUID       string `json:"uuid"`
	Persona    string `json:"persona"`
	SteamID    string `json:"steam_id"`
	WBID       string `json:"wbid"`
	DiscordID  string `json:"discord_id"`
	Persistent bool   `json:"persistent"`
	State      string `json:"state"`
	Migrations int    `json:"migrations"`
}

func accountFromRecord(rec *storage.UserRecord) accountResponse {
	return accountResponse{
		UUID:       rec.UUID,
		Persona:    rec.SteamPersona,
		SteamID:    rec.SteamID,
		WBID:       rec.WBID,
		DiscordID:  rec.DiscordID,
		Persistent: rec.Persistent,
		State:      string(rec.Lifecycle.State),
		Migrations: rec.Migrations,
	}
}

func (h *Handler) ResolveAccount(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "ticket required"})
		return
	}

	rec, err := h.Resolver.Resolve(c.Request.Context(), req.Ticket, c.ClientIP(), identity.Info{
		Persona:  req.Persona,
		SteamID:  req.SteamID,
		WBID:     req.WBID,
		Location: req.Location,
	})
	if err != nil {
		h.Logger.Error("resolve failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, accountFromRecord(rec))
}

func (h *Handler) GetAccount(c *gin.Context) {
	rec, err := h.Users.Get(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown account"})
			return
		}
		h.Logger.Error("account lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, accountFromRecord(rec))
}

// PutSave stores a full save blob and feeds the leaderboard engine with the
// totals it carries.
func (h *Handler) PutSave(c *gin.Context) {
	uuid := c.Param("uuid")

	var save map[string]any
	if err := c.ShouldBindJSON(&save); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "save must be a JSON object"})
		return
	}
	blob, err := json.Marshal(save)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "save must be a JSON object"})
		return
	}

	if err := h.Users.UpdateSave(c.Request.Context(), uuid, blob); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown account"})
			return
		}
		h.Logger.Error("save write failed", "uuid", uuid, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if err := h.Boards.RecordSave(c.Request.Context(), uuid, save); err != nil {
		h.Logger.Error("leaderboard update failed", "uuid", uuid, "error", err)
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) PutPersistent(c *gin.Context) {
	var req struct {
		Persistent bool `json:"persistent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid body"})
		return
	}
	if err := h.Users.SetPersistent(c.Request.Context(), c.Param("uuid"), req.Persistent); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PutDiscord(c *gin.Context) {
	var req struct {
		DiscordID string `json:"discord_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid body"})
		return
	}
	if err := h.Users.SetDiscordID(c.Request.Context(), c.Param("uuid"), req.DiscordID); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type migrateRequest struct {
	Credentials string `json:"credentials" binding:"required"`
	Ticket      string `json:"ticket" binding:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *Handler) RequestMigration(c *gin.Context) {
	var req migrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "credentials and ticket required"})
		return
	}

	status, err := h.Workflows.RequestMigration(c.Request.Context(), c.Param("uuid"), req.Credentials, req.Ticket)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown account"})
			return
		}
		h.Logger.Error("migration request failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	c.JSON(http.StatusAccepted, statusResponse{Status: string(status)})
}

func (h *Handler) RequestDeletion(c *gin.Context) {
	status, err := h.Workflows.RequestDeletion(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown account"})
			return
		}
		h.Logger.Error("deletion request failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	c.JSON(http.StatusAccepted, statusResponse{Status: string(status)})
}

func (h *Handler) writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown account"})
		return
	}
	h.Logger.Error("store update failed", "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
}
