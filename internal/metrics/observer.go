package metrics

import "poolCollector/internal/model"

// Observer turns collector signals into metrics. It satisfies
// collector.Observer.
type Observer struct {
	m *Metrics
}

func NewObserver(m *Metrics) *Observer {
	return &Observer{m: m}
}

func (o *Observer) Update(pools []model.Pool) {
	o.m.SetPoolsTracked(len(pools))
}

func (o *Observer) Info(string) {}

func (o *Observer) Error(string, error) {
	if o.m == nil {
		return
	}
	o.m.errors.Inc()
}
