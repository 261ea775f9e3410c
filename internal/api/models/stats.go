package models

import "time"

// ServerStatsResponse contains runtime, host and inventory statistics.
type ServerStatsResponse struct {
	Uptime        string            `json:"uptime"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     time.Time         `json:"start_time"`
	GoRoutines    int               `json:"goroutines"`
	MemoryAllocMB float64           `json:"memory_alloc_mb"`
	NumCPU        int               `json:"num_cpu"`
	Host          *HostStats        `json:"host,omitempty"`
	Inventory     InventoryResponse `json:"inventory"`
}

// HostStats are host level figures from gopsutil.
type HostStats struct {
	UptimeSeconds uint64  `json:"uptime_seconds"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
}

// InventoryResponse counts stored objects.
type InventoryResponse struct {
	Zones int `json:"zones"`
	Users int `json:"users"`
}
