package router

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/middleware"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/stream"
	"github.com/ghodss/yaml"
	"github.com/gin-gonic/gin"
)

// accepted interval range for PUT /ddns/config, in seconds
const (
	minIntervalSeconds = 60
	maxIntervalSeconds = 3600
	maxConfigBody      = 64 << 10
)

// DDNSRouter exposes the agent's control surface.
type DDNSRouter struct {
	agent        *ddns.Agent
	store        settings.Store
	localAddress func(ctx context.Context) (string, bool)
}

func NewDDNSRouter(agent *ddns.Agent, store settings.Store) *DDNSRouter {
	return &DDNSRouter{agent: agent, store: store, localAddress: ddns.LocalAddress}
}

func (dr *DDNSRouter) RegisterDDNSRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ddns")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("/status", middleware.DisableLogMiddleware(), dr.GetStatus)
		g.GET("/config", dr.GetConfig)
		g.GET("/local-address", dr.GetLocalAddress)
		g.POST("/start", middleware.AdminMiddleware(), dr.Start)
		g.POST("/stop", middleware.AdminMiddleware(), dr.Stop)
		g.POST("/update", middleware.AdminMiddleware(), dr.Update)
		g.PUT("/config", middleware.AdminMiddleware(), dr.UpdateConfig)
	}
}

func (dr *DDNSRouter) statusBody() gin.H {
	return gin.H{
		"state":  dr.agent.Snapshot(),
		"config": stream.NewConfigMessage(dr.agent.Config()),
	}
}

func (dr *DDNSRouter) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dr.statusBody())
}

func (dr *DDNSRouter) Start(c *gin.Context) {
	if !dr.agent.Config().Ready() {
		logAction(c, database.UserActionStartAgent, "ddns", "start refused: domain or token missing", false, nil)
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain and token must be set before starting"})
		return
	}
	dr.agent.Start()
	logAction(c, database.UserActionStartAgent, "ddns", "agent started", true, nil)
	c.JSON(http.StatusOK, dr.statusBody())
}

func (dr *DDNSRouter) Stop(c *gin.Context) {
	dr.agent.Stop()
	logAction(c, database.UserActionStopAgent, "ddns", "agent stopped", true, nil)
	c.JSON(http.StatusOK, dr.statusBody())
}

// Update runs one cycle in the request and reports its status.
func (dr *DDNSRouter) Update(c *gin.Context) {
	status := dr.agent.PerformUpdate(c.Request.Context())
	logAction(c, database.UserActionForceUpdate, "ddns", "forced update: "+string(status),
		status == ddns.StatusSuccess || status == ddns.StatusNoChange, nil)
	body := dr.statusBody()
	body["result"] = status
	c.JSON(http.StatusOK, body)
}

func (dr *DDNSRouter) GetConfig(c *gin.Context) {
	view := stream.NewConfigMessage(dr.agent.Config())
	if c.Query("format") == "yaml" {
		out, err := yaml.Marshal(view)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", out)
		return
	}
	c.JSON(http.StatusOK, view)
}

// configRequest is a partial update; nil fields are left as they are.
type configRequest struct {
	Domain          *string `json:"domain"`
	Token           *string `json:"token"`
	IntervalSeconds *int    `json:"interval_seconds"`
}

func decodeConfigRequest(c *gin.Context) (configRequest, error) {
	var req configRequest
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigBody))
	if err != nil {
		return req, err
	}
	if strings.Contains(c.ContentType(), "yaml") {
		if body, err = yaml.YAMLToJSON(body); err != nil {
			return req, err
		}
	}
	err = json.Unmarshal(body, &req)
	return req, err
}

// isMasked reports whether token is the masked form handed out by GET.
func isMasked(token string) bool {
	return strings.HasPrefix(token, "*")
}

// UpdateConfig validates a partial config, persists it, then hands it to the agent.
func (dr *DDNSRouter) UpdateConfig(c *gin.Context) {
	req, err := decodeConfigRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	old := dr.agent.Config()
	next := old
	if req.Domain != nil {
		next.Domain = strings.TrimSpace(*req.Domain)
		next.Domain = strings.TrimSuffix(next.Domain, ".duckdns.org")
	}
	if req.Token != nil && *req.Token != "" && !isMasked(*req.Token) {
		next.Token = strings.TrimSpace(*req.Token)
	}
	if req.IntervalSeconds != nil {
		s := *req.IntervalSeconds
		if s < minIntervalSeconds || s > maxIntervalSeconds {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval_seconds must be between 60 and 3600"})
			return
		}
		next.Interval = time.Duration(s) * time.Second
	}

	details := gin.H{
		"old": stream.NewConfigMessage(old),
		"new": stream.NewConfigMessage(next),
	}
	if dr.store != nil {
		if err := settings.SaveConfig(dr.store, next); err != nil {
			log.Printf("Failed to persist ddns settings: %v", err)
			logAction(c, database.UserActionUpdateConfig, "ddns_config", "save config failed", false, details)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save config failed: " + err.Error()})
			return
		}
	}
	dr.agent.SetConfig(next)
	logAction(c, database.UserActionUpdateConfig, "ddns_config", "ddns config updated", true, details)

	c.JSON(http.StatusOK, stream.NewConfigMessage(dr.agent.Config()))
}

func (dr *DDNSRouter) GetLocalAddress(c *gin.Context) {
	addr, ok := dr.localAddress(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"found":      ok,
		"address":    addr,
		"interfaces": ddns.LocalInterfaces,
	})
}
