// Package performance measures the resources a load consumes and writes
// optional pprof profiles around it.
package performance

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/jblondin/etl/pkg/errors"
)

// ResourceMonitor tracks resource usage of the current process from the
// moment it is created.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
}

// ResourceUsage is a point-in-time view of process resources.
type ResourceUsage struct {
	Elapsed        time.Duration `json:"elapsed"`
	CPUSeconds     float64       `json:"cpu_seconds"`
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryRSS      uint64        `json:"memory_rss"`
	MemoryVMS      uint64        `json:"memory_vms"`
	HeapAlloc      uint64        `json:"heap_alloc"`
	SystemMemUsed  float64       `json:"system_memory_used_percent"`
	GoroutineCount int           `json:"goroutines"`
	ThreadCount    int32         `json:"threads"`
}

// NewResourceMonitor starts monitoring the current process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to inspect process")
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if t, err := proc.Times(); err == nil {
		rm.startCPUTime = t.User + t.System
	}
	return rm, nil
}

// Usage samples current usage. Fields the platform cannot report stay zero.
func (rm *ResourceMonitor) Usage() ResourceUsage {
	u := ResourceUsage{
		Elapsed:        time.Since(rm.startTime),
		GoroutineCount: runtime.NumGoroutine(),
	}

	if t, err := rm.process.Times(); err == nil {
		u.CPUSeconds = t.User + t.System - rm.startCPUTime
		if secs := u.Elapsed.Seconds(); secs > 0 {
			u.CPUPercent = u.CPUSeconds / secs * 100
		}
	}
	if m, err := rm.process.MemoryInfo(); err == nil {
		u.MemoryRSS = m.RSS
		u.MemoryVMS = m.VMS
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.SystemMemUsed = vm.UsedPercent
	}
	u.ThreadCount, _ = rm.process.NumThreads()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	u.HeapAlloc = ms.HeapAlloc
	return u
}
