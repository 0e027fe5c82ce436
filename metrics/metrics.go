/*
fixcodec — FIX protocol codec
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/

// Package metrics counts codec traffic in Prometheus. A Collector is handed
// to codec.New through codec.WithObserver.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/stephenlclarke/fixcodec/codec"
)

const (
	namespace = "fixcodec"

	resultOK    = "ok"
	resultError = "error"

	unknownType = "unknown"
)

var messagesName = prometheus.BuildFQName(namespace, "", "messages_total")

// Collector implements codec.Observer.
type Collector struct {
	messages *prometheus.CounterVec
	sizes    *prometheus.HistogramVec
}

var _ codec.Observer = (*Collector)(nil)

// New creates a Collector and registers it on reg. Registering twice on the
// same registry returns a Collector sharing the existing metrics.
func New(reg prometheus.Registerer) (*Collector, error) {
	messages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages decoded or encoded, by result.",
		},
		[]string{"op", "msg_type", "result"},
	)
	sizes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_size_bytes",
			Help:      "Size of accepted frames in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
		},
		[]string{"op"},
	)

	var err error
	if messages, err = register(reg, messages); err != nil {
		return nil, fmt.Errorf("metrics: register messages: %w", err)
	}
	if sizes, err = register(reg, sizes); err != nil {
		return nil, fmt.Errorf("metrics: register frame sizes: %w", err)
	}

	return &Collector{messages: messages, sizes: sizes}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (c *Collector) Decoded(msgType string, size int, err error) {
	c.observe("decode", msgType, size, err)
}

func (c *Collector) Encoded(msgType string, size int, err error) {
	c.observe("encode", msgType, size, err)
}

func (c *Collector) observe(op, msgType string, size int, err error) {
	if msgType == "" {
		msgType = unknownType
	}

	c.messages.WithLabelValues(op, msgType, result(err)).Inc()
	if err == nil {
		c.sizes.WithLabelValues(op).Observe(float64(size))
	}
}

// result labels a failure with its error kind.
func result(err error) string {
	if err == nil {
		return resultOK
	}
	if k, ok := codec.KindOf(err); ok {
		return k.String()
	}
	return resultError
}

// Summary is a point-in-time reading of the message counters.
type Summary struct {
	Decoded  map[string]uint64 // accepted decodes by msg_type
	Encoded  map[string]uint64 // accepted encodes by msg_type
	Rejected map[string]uint64 // failed decodes and encodes by error kind
}

func (s Summary) total(m map[string]uint64) uint64 {
	var n uint64
	for _, v := range m {
		n += v
	}
	return n
}

// Summarize reads the counters registered by New from g.
func Summarize(g prometheus.Gatherer) (Summary, error) {
	s := Summary{
		Decoded:  map[string]uint64{},
		Encoded:  map[string]uint64{},
		Rejected: map[string]uint64{},
	}

	families, err := g.Gather()
	if err != nil {
		return s, fmt.Errorf("metrics: gather: %w", err)
	}

	for _, mf := range families {
		if mf.GetName() != messagesName {
			continue
		}
		for _, m := range mf.GetMetric() {
			l := labels(m)
			n := uint64(m.GetCounter().GetValue())

			switch {
			case l["result"] != resultOK:
				s.Rejected[l["result"]] += n
			case l["op"] == "decode":
				s.Decoded[l["msg_type"]] += n
			default:
				s.Encoded[l["msg_type"]] += n
			}
		}
	}

	return s, nil
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// Write prints the summary as an aligned table.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "decoded:  %d\n", s.total(s.Decoded))
	writeCounts(w, s.Decoded)
	fmt.Fprintf(w, "encoded:  %d\n", s.total(s.Encoded))
	writeCounts(w, s.Encoded)
	fmt.Fprintf(w, "rejected: %d\n", s.total(s.Rejected))
	writeCounts(w, s.Rejected)
}

func writeCounts(w io.Writer, m map[string]uint64) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(w, "  %-24s %d\n", k, m[k])
	}
}
