package collector

import (
	"go.uber.org/zap"

	"poolCollector/internal/model"
)

// Observer receives the signals the collector emits for its host process.
type Observer interface {
	// Update is called with the new pool list after every successful refresh.
	Update(pools []model.Pool)
	Info(msg string)
	Error(msg string, err error)
}

// LogObserver writes collector signals to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Update(pools []model.Pool) {
	o.logger.Info("pool list updated", zap.Int("pools", len(pools)))
}

func (o *LogObserver) Info(msg string) {
	o.logger.Info(msg)
}

func (o *LogObserver) Error(msg string, err error) {
	o.logger.Error(msg, zap.Error(err))
}

// Observers fans every signal out to each member in order.
type Observers []Observer

func (obs Observers) Update(pools []model.Pool) {
	for _, o := range obs {
		o.Update(pools)
	}
}

func (obs Observers) Info(msg string) {
	for _, o := range obs {
		o.Info(msg)
	}
}

func (obs Observers) Error(msg string, err error) {
	for _, o := range obs {
		o.Error(msg, err)
	}
}
