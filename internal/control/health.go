package control

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/The-Promised-Neverland/navlink/internal/models"
)

// HostMetrics samples the machine the agent runs on. Probes that fail leave
// their field zero.
func HostMetrics() *models.HostMetrics {
	metrics := &models.HostMetrics{}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		metrics.CPUUsage = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryUsage = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage("/"); err == nil {
		metrics.DiskUsage = diskStat.UsedPercent
	}
	if hostInfo, err := host.Info(); err == nil {
		metrics.Hostname = hostInfo.Hostname
		metrics.OS = hostInfo.OS
		metrics.Uptime = hostInfo.Uptime
	}
	return metrics
}

func uptime(start time.Time) int64 {
	return int64(time.Since(start).Seconds())
}
