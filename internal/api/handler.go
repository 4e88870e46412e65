package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
	"github.com/mr1hm/go-outbreak-globe/internal/prefs"
	"github.com/mr1hm/go-outbreak-globe/internal/scene"
)

type Handler struct {
	engine *scene.Engine
	store  prefs.Store
}

func NewHandler(engine *scene.Engine, store prefs.Store) *Handler {
	return &Handler{
		engine: engine,
		store:  store,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.GET("/api/scene", h.getScene)
	r.GET("/api/variants", h.getVariants)
	r.GET("/api/stream/frames", h.streamFrames)
	r.GET("/api/ws", h.handleWebsocket)

	control := r.Group("/api/control")
	control.POST("/play", h.play)
	control.POST("/pause", h.pause)
	control.POST("/toggle", h.togglePlay)
	control.POST("/step", h.step)
	control.POST("/jump", h.jump)
	control.POST("/scrub", h.scrub)
	control.POST("/speed", h.speed)
	control.POST("/mode", h.mode)

	r.GET("/api/prefs/:user", h.getPrefs)
	r.PUT("/api/prefs/:user", h.putPrefs)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getScene(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Frame())
}

func (h *Handler) getVariants(c *gin.Context) {
	variants, err := h.engine.Variants(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch variants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants})
}

func (h *Handler) play(c *gin.Context) {
	h.engine.Controller().Play()
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

func (h *Handler) pause(c *gin.Context) {
	h.engine.Controller().Pause()
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

func (h *Handler) togglePlay(c *gin.Context) {
	h.engine.Controller().TogglePlay()
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

// step and jump take dir=back|forward.
func (h *Handler) step(c *gin.Context) {
	switch c.Query("dir") {
	case "back":
		h.engine.Controller().StepBack()
	case "forward":
		h.engine.Controller().StepForward()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir must be back or forward"})
		return
	}
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

func (h *Handler) jump(c *gin.Context) {
	switch c.Query("dir") {
	case "back":
		h.engine.Controller().JumpBack()
	case "forward":
		h.engine.Controller().JumpForward()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "dir must be back or forward"})
		return
	}
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

func (h *Handler) scrub(c *gin.Context) {
	pct, err := strconv.ParseFloat(c.Query("pct"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pct must be a number in [0,100]"})
		return
	}
	h.engine.Controller().SetByFraction(pct)
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

func (h *Handler) speed(c *gin.Context) {
	mult, err := strconv.Atoi(c.Query("multiplier"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multiplier must be an integer"})
		return
	}
	if err := h.engine.Controller().SetSpeed(mult); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.engine.Controller().Snapshot())
}

type modeRequest struct {
	Mode      string `json:"mode" binding:"required"`
	VariantID string `json:"variant_id"`
}

func (h *Handler) mode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch models.ArcMode(req.Mode) {
	case models.ArcModeFlights:
		h.engine.SetMode(models.ArcModeFlights, "")
	case models.ArcModeSpread:
		if req.VariantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "variant_id required for spread mode"})
			return
		}
		h.engine.SetMode(models.ArcModeSpread, req.VariantID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be flights or spread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode, "variant_id": req.VariantID})
}

func (h *Handler) getPrefs(c *gin.Context) {
	p, err := h.store.Load(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	if p == nil {
		p = prefs.Defaults()
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) putPrefs(c *gin.Context) {
	var p prefs.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preferences body"})
		return
	}

	if err := h.store.Save(c.Request.Context(), c.Param("user"), &p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save preferences"})
		return
	}

	// Saved preferences take effect immediately in the running scene.
	h.engine.SetWatchlist(p.Watchlist)
	if p.ArcMode == models.ArcModeSpread && p.VariantID != "" {
		h.engine.SetMode(models.ArcModeSpread, p.VariantID)
	} else {
		h.engine.SetMode(models.ArcModeFlights, "")
	}

	c.JSON(http.StatusOK, p)
}
