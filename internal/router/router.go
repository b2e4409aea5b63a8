package router

import (
	"fmt"
	"net/http"

	"github.com/fluhartyml/NightGardDDNS/internal/client"
	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/middleware"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/stream"
	"github.com/gin-gonic/gin"
)

// Options carries what the API needs from the daemon.
type Options struct {
	Agent    *ddns.Agent
	Settings settings.Store
	Logs     *database.LogService
	Stream   *stream.StreamManager
	Version  string
}

// InitRouter builds the HTTP API around the agent.
func InitRouter(opts Options) *gin.Engine {
	g := gin.New()

	g.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		if noLog, ok := param.Keys["disable_log"]; ok && noLog == true {
			return ""
		}
		return fmt.Sprintf("[NightGard] %v | %3d | %13v | %15s | %-7s %#v\n%s",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
			param.ErrorMessage,
		)
	}))
	g.Use(gin.Recovery())
	g.Use(middleware.IPMiddleware())

	g.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+client.HeaderKey)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	g.HandleMethodNotAllowed = true

	g.GET("/ping", middleware.DisableLogMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	g.POST("/client", func(c *gin.Context) {
		client.Login(c)
		if c.Writer.Status() == http.StatusOK {
			logAction(c, database.UserActionLogin, "session", "login", true, nil)
		}
	})
	g.GET("/client", middleware.AuthMiddleware(), client.HandleGetClientSessions)
	g.DELETE("/client/current", middleware.AuthMiddleware(), func(c *gin.Context) {
		client.HandleDeleteCurrentClientSession(c)
		logAction(c, database.UserActionLogout, "session", "logout", true, nil)
	})
	g.DELETE("/client/:id", middleware.AuthMiddleware(), func(c *gin.Context) {
		client.HandleDeleteClientSession(c)
		logAction(c, database.UserActionDeleteSession, "session", "delete session "+c.Param("id"),
			c.Writer.Status() == http.StatusOK, nil)
	})

	g.GET("/current/user", middleware.DisableLogMiddleware(), middleware.AuthMiddleware(), client.GetCurrentUser)
	g.POST("/current/user/password", middleware.AuthMiddleware(), func(c *gin.Context) {
		client.ChangePassword(c)
		logAction(c, database.UserActionChangePasswd, "user", "change password",
			c.Writer.Status() == http.StatusOK, nil)
	})

	if opts.Agent != nil {
		NewDDNSRouter(opts.Agent, opts.Settings).RegisterDDNSRoutes(g.Group(""))
	}
	if opts.Logs != nil {
		NewLogRouter(opts.Logs).RegisterLogRoutes(g.Group(""))
	}
	NewSystemRouter(opts.Agent, opts.Stream, opts.Version).RegisterSystemRoutes(g.Group(""))

	if opts.Stream != nil {
		var snapshot func() ddns.State
		if opts.Agent != nil {
			snapshot = opts.Agent.Snapshot
		}
		ws := g.Group("/stream")
		ws.Use(middleware.WsAuthMiddleware())
		ws.GET("", opts.Stream.Handler(snapshot))
	}

	return g
}

// logAction records a user activity attributed to the caller.
func logAction(c *gin.Context, action, resource, description string, success bool, details interface{}) {
	username := c.GetString("username")
	if username == "" {
		username = "anonymous"
	}
	database.LogUserAction(username, action, resource, description,
		middleware.GetClientIP(c), c.GetHeader("User-Agent"), success, details)
}
