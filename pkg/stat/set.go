// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// This file provides prometheus style metrics (Val type) for instrumenting the bisection.
// It also provides a registry for such metrics (set type) and a global default registry.
//
// Simple uses of metrics:
//
//	statFoo := stat.New("metric name", "metric description")
//	statFoo.Add(1)
//
// At the end of a run Collect returns values of all registered metrics for logging,
// and WriteTextfile dumps the Prometheus-exported ones in text exposition format.

type UI struct {
	Name  string
	Desc  string
	Value string
	V     int
}

func New(name, desc string, opts ...any) *Val {
	return global.New(name, desc, opts...)
}

func Collect() []UI {
	return global.Collect()
}

// WriteTextfile writes all metrics exported with the Prometheus option to filename
// (suitable for node_exporter's textfile collector).
func WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, global.registry)
}

var global = newSet()

type set struct {
	mu       sync.Mutex
	vals     map[string]*Val
	registry *prometheus.Registry
}

const histogramBuckets = 255

func newSet() *set {
	return &set{
		vals:     make(map[string]*Val),
		registry: prometheus.NewRegistry(),
	}
}

func (s *set) Collect() []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []UI
	for _, v := range s.vals {
		val := v.Val()
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Value: v.format(val),
			V:     val,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

// Additional options for Val metrics.

// Prometheus exports the metric to Prometheus under the given name.
type Prometheus string

// Distribution says to collect histogram of individual sample distributions.
// Val returns the mean of the samples.
type Distribution struct{}

// Addittionally a custom 'func() int' can be passed to read the metric value from the function.

func (s *set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name: name,
		desc: desc,
	}
	for _, o := range opts {
		switch opt := o.(type) {
		case Distribution:
			v.hist = true
		case func() int:
			v.ext = opt
		case Prometheus:
			// Prometheus Instrumentation https://prometheus.io/docs/guides/go-application.
			s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: string(opt),
				Help: desc,
			},
				func() float64 { return float64(v.Val()) },
			))
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals[name] != nil {
		panic(fmt.Sprintf("duplicate stat %q", name))
	}
	s.vals[name] = v
	return v
}

type Val struct {
	name    string
	desc    string
	val     atomic.Uint64
	ext     func() int
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

func (v *Val) Add(val int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile returns the q-th quantile of a Distribution metric.
func (v *Val) Quantile(q float64) float64 {
	if !v.hist {
		panic(fmt.Sprintf("stat %v is not a distribution", v.name))
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return v.histVal.Quantile(q)
}

func (v *Val) format(val int) string {
	if !v.hist {
		return fmt.Sprint(val)
	}
	return fmt.Sprintf("%v (p50 %.0f, p90 %.0f)", val, v.Quantile(0.5), v.Quantile(0.9))
}
