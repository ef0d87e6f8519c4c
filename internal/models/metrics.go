package models

type HostMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	Hostname    string  `json:"hostname"`
	OS          string  `json:"os"`
	Uptime      uint64  `json:"uptime"`
}

type HealthCheck struct {
	Status      string       `json:"sys_status"`
	Uptime      int64        `json:"uptime"`
	Broker      string       `json:"broker_status,omitempty"`
	State       string       `json:"agent_state,omitempty"`
	Subscribers int          `json:"subscribers,omitempty"`
	HostMetrics *HostMetrics `json:"host_metrics,omitempty"`
}
