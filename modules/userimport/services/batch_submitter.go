package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/pkg/logging"
)

// UserCreator is the bulk-create endpoint.
type UserCreator interface {
	BulkCreate(ctx context.Context, users []payload.User) error
}

// backendMessager is implemented by errors that carry the backend's own message.
type backendMessager interface {
	BackendMessage() string
}

// BatchSubmitter sends all valid users in one call, without chunking or retries.
type BatchSubmitter struct {
	creator UserCreator
	log     *logrus.Entry
}

func NewBatchSubmitter(creator UserCreator, log *logrus.Entry) *BatchSubmitter {
	if log == nil {
		log = logging.Nop()
	}
	return &BatchSubmitter{creator: creator, log: log}
}

func (s *BatchSubmitter) Submit(ctx context.Context, users []payload.User) error {
	if len(users) == 0 {
		return ErrNothingToSubmit
	}

	started := time.Now()
	err := s.creator.BulkCreate(ctx, users)
	elapsed := time.Since(started)

	m := getMetrics()
	if err != nil {
		m.submissionsTotal.WithLabelValues("rejected").Inc()
		m.submitLatency.WithLabelValues("rejected").Observe(elapsed.Seconds())

		msg := ""
		var bm backendMessager
		if errors.As(err, &bm) {
			msg = bm.BackendMessage()
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"users":      len(users),
			"elapsed_ms": elapsed.Milliseconds(),
		}).Warn("user_import.submit.rejected")
		return newImportError(ErrSubmissionRejected, msg, err)
	}

	m.submissionsTotal.WithLabelValues("ok").Inc()
	m.submitLatency.WithLabelValues("ok").Observe(elapsed.Seconds())
	s.log.WithFields(logrus.Fields{
		"users":      len(users),
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("user_import.submit.ok")
	return nil
}
