package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/internal/application"
)

const (
	requestTimeout = 3 * time.Second
	queueSize      = 256
)

// AuditSink indexes auth events into an Elasticsearch index. Record only
// enqueues; one worker does the indexing. Events are dropped with a warning
// when the queue is full or the index call fails.
type AuditSink struct {
	es     *elasticsearch.Client
	index  string
	logger *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan application.AuditEvent
	done   chan struct{}
}

func NewAuditSink(es *elasticsearch.Client, index string, logger *logrus.Logger) *AuditSink {
	s := &AuditSink{
		es:     es,
		index:  index,
		logger: logger,
		queue:  make(chan application.AuditEvent, queueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Record never blocks on Elasticsearch.
func (s *AuditSink) Record(_ context.Context, ev application.AuditEvent) {
	if s.es == nil || s.index == "" || s.queue == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.warn(errors.New("queue full"), ev, "es audit event dropped")
	}
}

// Close stops accepting events and waits for the queued ones to be indexed.
func (s *AuditSink) Close() {
	if s.queue == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *AuditSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.indexOne(ev)
	}
}

func (s *AuditSink) indexOne(ev application.AuditEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req := esapi.IndexRequest{Index: s.index, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(c, s.es)
	if err != nil {
		s.warn(err, ev, "es audit index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.warn(fmt.Errorf("status %s", res.Status()), ev, "es audit index response error")
	}
}

// Recent returns the newest events for a user, newest first.
func (s *AuditSink) Recent(ctx context.Context, userID string, size int) ([]application.AuditEvent, error) {
	if s.es == nil || s.index == "" {
		return []application.AuditEvent{}, nil
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"user_id": userID},
		},
		"sort": []any{map[string]any{"@timestamp": map[string]any{"order": "desc"}}},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := s.es.Search(
		s.es.Search.WithContext(c),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source application.AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("es search decode: %w", err)
	}
	out := make([]application.AuditEvent, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *AuditSink) warn(err error, ev application.AuditEvent, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.WithError(err).WithFields(logrus.Fields{"action": ev.Action, "user_id": ev.UserID}).Warn(msg)
}

var _ application.AuditSink = (*AuditSink)(nil)
