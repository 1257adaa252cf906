package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/kevinaaaquil/library/common"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB      Pinger
	Started time.Time
}

type MemoryStats struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	HeapObjects     uint64 `json:"heapObjects"`
	NumGC           uint32 `json:"numGC"`
	Goroutines      int    `json:"goroutines"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	Uptime    float64     `json:"uptime"`
	Timestamp time.Time   `json:"timestamp"`
	Database  string      `json:"database"`
	Memory    MemoryStats `json:"memory"`
}

// Health always answers 200; a failed ping only marks the status degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.Started).Seconds(),
		Timestamp: time.Now().UTC(),
		Database:  "connected",
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.DB == nil || h.DB.Ping(ctx) != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	resp.Memory = MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		HeapObjects:     m.HeapObjects,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
