package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read once per collection cycle. *sehatauth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() sehatauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  sehatauth.MetricID
	ins metric.Int64ObservableCounter
}

// latencyInstruments mirror one engine latency histogram: a cumulative
// gauge per bucket bound plus the number of observations.
type latencyInstruments struct {
	id    sehatauth.MetricID
	le    [8]metric.Int64ObservableGauge
	total metric.Int64ObservableGauge
}

// Exporter publishes the identity service counters (registrations, logins,
// reset codes, OPD registrations, store outages) and the login latency
// histogram as asynchronous instruments.
type Exporter struct {
	source   Source
	reg      metric.Registration
	counters []counterInstrument
	latency  []latencyInstruments
	dropped  metric.Int64ObservableCounter
}

// New registers the instruments on meter, reading from engine.
func New(meter metric.Meter, engine *sehatauth.Engine) (*Exporter, error) {
	return NewFromSource(meter, engine)
}

// NewFromSource registers the instruments on meter, reading from source.
func NewFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	counters, err := e.registerCounters(meter)
	if err != nil {
		return nil, err
	}
	latency, err := e.registerLatency(meter)
	if err != nil {
		return nil, err
	}

	e.dropped, err = meter.Int64ObservableCounter(
		"sehatauth_audit_dropped_total",
		metric.WithDescription("Audit events dropped because the dispatcher queue was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}

	observables := append(counters, latency...)
	observables = append(observables, e.dropped)
	e.reg, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) registerCounters(meter metric.Meter) ([]metric.Observable, error) {
	out := make([]metric.Observable, 0, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		out = append(out, ins)
	}
	return out, nil
}

// registerLatency creates <name>_bucket_le_<bound> and <name>_count gauges.
// OTel has no asynchronous histogram, so the buckets travel as gauges.
func (e *Exporter) registerLatency(meter metric.Meter) ([]metric.Observable, error) {
	var out []metric.Observable
	for _, def := range internaldefs.HistogramDefs {
		li := latencyInstruments{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			desc := def.Help + " Observations at or below " + internaldefs.HistogramBounds[i] + "s."
			if internaldefs.HistogramBounds[i] == "+Inf" {
				desc = def.Help + " All observations."
			}
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(desc))
			if err != nil {
				return nil, fmt.Errorf("create bucket gauge %s: %w", name, err)
			}
			li.le[i] = ins
			out = append(out, ins)
		}

		name := def.Name + "_count"
		total, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Total observations."))
		if err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", name, err)
		}
		li.total = total
		out = append(out, total)
		e.latency = append(e.latency, li)
	}
	return out, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}

	for _, li := range e.latency {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[li.id]))
		for i, n := range buckets {
			o.ObserveInt64(li.le[i], int64(n))
		}
		// The last bound is +Inf, so its running total is the count.
		o.ObserveInt64(li.total, int64(buckets[len(buckets)-1]))
	}

	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	return e.reg.Unregister()
}
