package router

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/middleware"
	"github.com/fluhartyml/NightGardDDNS/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

// SystemRouter reports on the daemon and the machine it runs on.
type SystemRouter struct {
	agent   *ddns.Agent
	stream  *stream.StreamManager
	version string
}

func NewSystemRouter(agent *ddns.Agent, sm *stream.StreamManager, version string) *SystemRouter {
	return &SystemRouter{agent: agent, stream: sm, version: version}
}

func (sr *SystemRouter) RegisterSystemRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/system")
	g.Use(middleware.AuthMiddleware(), middleware.DisableLogMiddleware())
	{
		g.GET("/status", sr.GetStatus)
	}
}

type runtimeStatus struct {
	Version        string      `json:"version"`
	UpdatedAt      string      `json:"updatedAt"`
	Hostname       string      `json:"hostname,omitempty"`
	OS             string      `json:"os"`
	Arch           string      `json:"arch"`
	GoVersion      string      `json:"goVersion"`
	UptimeSec      uint64      `json:"uptimeSec,omitempty"`
	DaemonUptime   int64       `json:"daemonUptimeSec"`
	CPUPercent     float64     `json:"cpuPercent,omitempty"`
	MemUsedPercent float64     `json:"memUsedPercent,omitempty"`
	Load1          float64     `json:"load1,omitempty"`
	ProcessRSS     uint64      `json:"processRss,omitempty"`
	Goroutines     int         `json:"goroutines"`
	StreamClients  int         `json:"streamClients"`
	Agent          *ddns.State `json:"agent,omitempty"`
}

// collectRuntimeStatus fills what gopsutil can read; missing probes are left zero.
func collectRuntimeStatus(ctx context.Context) runtimeStatus {
	out := runtimeStatus{
		UpdatedAt:    time.Now().Format(time.RFC3339),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		GoVersion:    runtime.Version(),
		DaemonUptime: int64(time.Since(startedAt) / time.Second),
		Goroutines:   runtime.NumGoroutine(),
	}

	if hi, err := host.InfoWithContext(ctx); err == nil && hi != nil {
		out.Hostname = hi.Hostname
		out.UptimeSec = hi.Uptime
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		out.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		out.MemUsedPercent = vm.UsedPercent
	}
	if perc, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(perc) > 0 {
		out.CPUPercent = perc[0]
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			out.ProcessRSS = mi.RSS
		}
	}
	return out
}

func (sr *SystemRouter) GetStatus(c *gin.Context) {
	out := collectRuntimeStatus(c.Request.Context())
	out.Version = sr.version
	if sr.stream != nil {
		out.StreamClients = sr.stream.ClientCount()
	}
	if sr.agent != nil {
		snap := sr.agent.Snapshot()
		out.Agent = &snap
	}
	c.JSON(http.StatusOK, out)
}
