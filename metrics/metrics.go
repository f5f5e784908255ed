package metrics

import "time"

// Recorder receives lifecycle counters and latencies. Label keys used by the
// controller are "network" and "phase".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
