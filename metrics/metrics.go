// Package metrics 记录接口调用次数与耗时
package metrics

import "time"

// Recorder 指标记录器
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
