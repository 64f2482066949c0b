package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aiwuxian/apocalypse/internal/content"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/services"
	"github.com/aiwuxian/apocalypse/internal/storage"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	bundle     *content.Bundle
	config     models.GameConfig
	rank       services.RankLookup
	llmService *services.LLMService
	saves      *services.SaveService
	sessions   *Sessions
}

func NewHandler(bundle *content.Bundle, config models.GameConfig, rank services.RankLookup,
	llmService *services.LLMService, saves *services.SaveService, sessions *Sessions) *Handler {
	return &Handler{
		bundle:     bundle,
		config:     config,
		rank:       rank,
		llmService: llmService,
		saves:      saves,
		sessions:   sessions,
	}
}

// Register 注册所有路由
func (h *Handler) Register(r gin.IRouter) {
	// 会话
	r.POST("/games", h.NewGame)
	r.GET("/games/:id", h.GetGame)
	r.DELETE("/games/:id", h.CloseGame)
	r.GET("/games/:id/events", h.StreamEvents)

	// 卡牌与选择
	r.POST("/games/:id/choose", h.Choose)
	r.POST("/games/:id/selection", h.ResolveSelection)
	r.DELETE("/games/:id/selection", h.CancelSelection)

	// 地点
	r.GET("/games/:id/locations", h.ListLocations)
	r.POST("/games/:id/destination", h.SelectDestination)

	// 战斗
	r.GET("/games/:id/combat", h.GetCombat)

	// 物品
	r.POST("/games/:id/items/use", h.UseItem)
	r.POST("/games/:id/items/equip", h.EquipItem)
	r.POST("/games/:id/items/unequip", h.UnequipItem)

	// 卡包与关系
	r.GET("/games/:id/cardsets", h.ListCardSets)
	r.PUT("/games/:id/cardsets", h.SetCardSets)
	r.GET("/games/:id/relationships", h.ListRelationships)

	// 存档
	r.GET("/games/:id/saves", h.ListSaves)
	r.POST("/games/:id/saves", h.SaveGame)
	r.POST("/games/:id/saves/load", h.LoadGame)
	r.DELETE("/games/:id/saves/:slot", h.DeleteSave)
}

// getCustomNarrator 从请求头获取自定义API配置；没有时使用默认服务
func (h *Handler) getCustomNarrator(c *gin.Context) services.Narrator {
	apiKey := c.GetHeader("X-Custom-API-Key")
	if apiKey == "" {
		if h.llmService == nil {
			return nil
		}
		return h.llmService
	}

	config := models.LLMConfig{
		Provider:    "openai",
		APIKey:      apiKey,
		APIBase:     c.GetHeader("X-Custom-API-Base"),
		Model:       c.GetHeader("X-Custom-API-Model"),
		Temperature: 0.7,
		MaxTokens:   500,
	}
	return services.NewLLMService(config)
}

// errorStatus 错误到HTTP状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, storage.ErrSaveNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrGameEnded),
		errors.Is(err, services.ErrSelectionPending),
		errors.Is(err, services.ErrNoPendingSelection),
		errors.Is(err, services.ErrNoCurrentCard),
		errors.Is(err, services.ErrLocationPanelLocked):
		return http.StatusConflict
	case errors.Is(err, services.ErrChoiceUnavailable),
		errors.Is(err, services.ErrInvalidSelection),
		errors.Is(err, services.ErrInvalidSlot),
		errors.Is(err, services.ErrUnreachableLocation),
		errors.Is(err, services.ErrInsufficientItems),
		errors.Is(err, services.ErrNotConsumable),
		errors.Is(err, services.ErrNotEquipment),
		errors.Is(err, services.ErrEmptySlot):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// withGame 在会话锁内执行 fn，成功时返回最新局面
func (h *Handler) withGame(c *gin.Context, fn func(owner string, g *services.Game) error) {
	var view services.GameView
	err := h.sessions.With(c.Param("id"), func(owner string, g *services.Game) error {
		if err := fn(owner, g); err != nil {
			return err
		}
		view = g.View()
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// NewGame 创建会话并开始游戏
func (h *Handler) NewGame(c *gin.Context) {
	var req struct {
		Owner    string   `json:"owner"`
		Seed     int64    `json:"seed"`
		CardSets []string `json:"card_sets"`
	}
	// 允许空请求体
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	if req.Owner == "" {
		req.Owner = "guest"
	}

	cfg := h.config
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	game, err := services.NewGame(services.GameDeps{
		Bundle:   h.bundle,
		Config:   cfg,
		Rank:     h.rank,
		Narrator: h.getCustomNarrator(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(req.CardSets) > 0 {
		game.Cards.SetEnabled(req.CardSets)
	}
	if err := game.Start(c.Request.Context()); err != nil {
		game.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sessions.Add(req.Owner, game)
	c.JSON(http.StatusOK, game.View())
}

// GetGame 当前局面
func (h *Handler) GetGame(c *gin.Context) {
	h.withGame(c, func(string, *services.Game) error { return nil })
}

// CloseGame 结束会话
func (h *Handler) CloseGame(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "会话已关闭"})
}

// Choose 选择当前卡牌的选项
func (h *Handler) Choose(c *gin.Context) {
	var req struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		_, err := g.Choose(c.Request.Context(), *req.Index)
		return err
	})
}

// ResolveSelection 回传挂起选择的选项
func (h *Handler) ResolveSelection(c *gin.Context) {
	var req struct {
		SelectionID string `json:"selection_id" binding:"required"`
		OptionID    string `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.ResolveSelection(c.Request.Context(), req.SelectionID, req.OptionID)
	})
}

// CancelSelection 取消挂起的选择
func (h *Handler) CancelSelection(c *gin.Context) {
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.CancelSelection(c.Request.Context())
	})
}

// ListLocations 所有地点与可前往的地点
func (h *Handler) ListLocations(c *gin.Context) {
	var resp gin.H
	err := h.sessions.With(c.Param("id"), func(_ string, g *services.Game) error {
		resp = gin.H{
			"current":        g.World.CurrentLocation(),
			"panel_unlocked": g.World.PanelUnlocked(),
			"locations":      g.World.Locations(),
			"reachable":      g.World.Reachable(),
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SelectDestination 选择目标地点
func (h *Handler) SelectDestination(c *gin.Context) {
	var req struct {
		Location string `json:"location" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.SelectDestination(c.Request.Context(), req.Location)
	})
}

// GetCombat 当前战斗的参与者与回合状态
func (h *Handler) GetCombat(c *gin.Context) {
	var resp gin.H
	err := h.sessions.With(c.Param("id"), func(_ string, g *services.Game) error {
		e := g.Combat
		if !e.Active() {
			resp = gin.H{"active": false}
			return nil
		}
		resp = gin.H{
			"active":      true,
			"combat_id":   e.CombatID(),
			"phase":       e.Phase(),
			"turn":        e.TurnState(),
			"combatants":  e.Registry().All(),
			"actor":       e.CurrentActor(),
			"last_result": e.LastResult(),
			"description": e.Description(),
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type itemRequest struct {
	Name string `json:"name"`
	Slot string `json:"slot"`
}

// UseItem 使用消耗品
func (h *Handler) UseItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.Items.UseConsumable(req.Name)
	})
}

// EquipItem 装备物品
func (h *Handler) EquipItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.Items.Equip(req.Name)
	})
}

// UnequipItem 卸下装备
func (h *Handler) UnequipItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Slot == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.Items.Unequip(req.Slot)
	})
}

// ListCardSets 卡包分类与启用状态
func (h *Handler) ListCardSets(c *gin.Context) {
	var resp gin.H
	err := h.sessions.With(c.Param("id"), func(_ string, g *services.Game) error {
		resp = gin.H{
			"sets":       g.Cards.Sets(),
			"enabled":    g.Cards.EnabledSets(),
			"categories": h.bundle.Categories,
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetCardSets 替换启用的卡包
func (h *Handler) SetCardSets(c *gin.Context) {
	var req struct {
		Sets []string `json:"sets" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(_ string, g *services.Game) error {
		return g.EnableCardSets(req.Sets)
	})
}

// ListRelationships 其他角色对玩家的关系
func (h *Handler) ListRelationships(c *gin.Context) {
	var resp map[string]models.Relationship
	err := h.sessions.With(c.Param("id"), func(_ string, g *services.Game) error {
		resp = g.Chars.PlayerRelationships()
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type slotRequest struct {
	Slot int `json:"slot" binding:"required"`
}

// SaveGame 保存到槽位
func (h *Handler) SaveGame(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	var save *models.SaveGame
	err := h.sessions.With(c.Param("id"), func(owner string, g *services.Game) error {
		var err error
		save, err = h.saves.Save(c.Request.Context(), owner, req.Slot, g)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": save.Slot, "game_date": save.GameDate, "updated_at": save.UpdatedAt})
}

// ListSaves 当前用户的存档槽位
func (h *Handler) ListSaves(c *gin.Context) {
	var slots []models.SaveSlot
	err := h.sessions.With(c.Param("id"), func(owner string, _ *services.Game) error {
		var err error
		slots, err = h.saves.List(c.Request.Context(), owner)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "capacity": h.saves.Slots()})
}

// LoadGame 读取槽位到当前会话
func (h *Handler) LoadGame(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	h.withGame(c, func(owner string, g *services.Game) error {
		return h.saves.Load(c.Request.Context(), owner, req.Slot, g)
	})
}

// DeleteSave 删除槽位
func (h *Handler) DeleteSave(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误"})
		return
	}
	err = h.sessions.With(c.Param("id"), func(owner string, _ *services.Game) error {
		return h.saves.Delete(c.Request.Context(), owner, slot)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "存档已删除"})
}
