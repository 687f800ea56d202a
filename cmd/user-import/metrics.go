package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/userimport/pkg/configuration"
)

// pushMetrics sends the run's counters to the Pushgateway when one is
// configured. A failed push is logged and never fails the command.
func pushMetrics(ctx context.Context, log *logrus.Entry, sessionID string) {
	conf := configuration.Use().Prometheus
	if conf.PushgatewayURL == "" {
		return
	}
	err := push.New(conf.PushgatewayURL, conf.Job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("session_id", sessionID).
		PushContext(ctx)
	if err != nil {
		log.WithError(err).WithField("url", conf.PushgatewayURL).Warn("user_import.metrics.push_failed")
		return
	}
	log.WithField("url", conf.PushgatewayURL).Debug("user_import.metrics.pushed")
}
