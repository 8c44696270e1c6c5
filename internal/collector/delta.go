package collector

import "math"

func deltaCounter(cur, prev uint64) uint64 {
	if cur < prev {
		// counter reset/overflow/restart
		return 0
	}
	return cur - prev
}

// cpuPercent derives workload CPU utilisation from two cumulative readings of
// workload CPU time and host CPU time (same unit), scaled by the online core count.
func cpuPercent(cpuNow, cpuPrev, sysNow, sysPrev uint64, cores uint32) float64 {
	cpuDelta := deltaCounter(cpuNow, cpuPrev)
	sysDelta := deltaCounter(sysNow, sysPrev)
	if sysDelta == 0 || cpuDelta == 0 {
		return 0
	}
	if cores == 0 {
		cores = 1
	}
	return clampPercent((float64(cpuDelta) / float64(sysDelta)) * float64(cores) * 100)
}

func clampPercent(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func percentOf(value, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return clampPercent((float64(value) / float64(total)) * 100)
}

func round(value float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(value*p) / p
}
