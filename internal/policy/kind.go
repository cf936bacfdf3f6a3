package policy

import "fmt"

// MetricKind is the closed set of signals a policy can evaluate. Adding a
// kind requires extending the exhaustive switch in normalizedValue.
type MetricKind int

const (
	KindCPU MetricKind = iota
	KindMemory
	KindRequestRate
	KindResponseTime
	KindComposite
)

func (k MetricKind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindMemory:
		return "memory"
	case KindRequestRate:
		return "request_rate"
	case KindResponseTime:
		return "response_time"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (MetricKind, error) {
	switch s {
	case "cpu":
		return KindCPU, nil
	case "memory":
		return KindMemory, nil
	case "request_rate":
		return KindRequestRate, nil
	case "response_time":
		return KindResponseTime, nil
	case "composite":
		return KindComposite, nil
	default:
		return 0, fmt.Errorf("unknown metric kind %q", s)
	}
}
