package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// HostSample carries one round of host readings. Utilization values are
// normalized to 0..1, byte counters are cumulative.
type HostSample struct {
	CPUUsage       float64
	MemoryUsage    float64
	DiskUsage      float64
	NetworkRxBytes float64
	NetworkTxBytes float64
}

// HostSampler abstracts the machine the collector samples, so tests can
// substitute fixed readings.
type HostSampler interface {
	Sample(ctx context.Context) (HostSample, error)
}

// GopsutilSampler reads host metrics through gopsutil.
type GopsutilSampler struct {
	DiskPath string
}

func NewGopsutilSampler() *GopsutilSampler {
	return &GopsutilSampler{DiskPath: "/"}
}

func (s *GopsutilSampler) Sample(ctx context.Context) (HostSample, error) {
	var sample HostSample

	// Interval 0 measures utilization since the previous call, which keeps
	// the sampler non-blocking inside the collection loop.
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, fmt.Errorf("cpu sample failed: %w", err)
	}
	if len(cpuPercents) > 0 {
		sample.CPUUsage = cpuPercents[0] / 100
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, fmt.Errorf("memory sample failed: %w", err)
	}
	sample.MemoryUsage = vm.UsedPercent / 100

	usage, err := disk.UsageWithContext(ctx, s.DiskPath)
	if err != nil {
		return sample, fmt.Errorf("disk sample failed: %w", err)
	}
	sample.DiskUsage = usage.UsedPercent / 100

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return sample, fmt.Errorf("network sample failed: %w", err)
	}
	if len(counters) > 0 {
		sample.NetworkRxBytes = float64(counters[0].BytesRecv)
		sample.NetworkTxBytes = float64(counters[0].BytesSent)
	}

	return sample, nil
}
