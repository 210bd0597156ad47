package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semremodel/report"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestCollector(t *testing.T) {
	c := &report.Collector{}
	c.Report(report.Entry{ConceptID: "a", Message: "one"})
	c.Report(report.Entry{ConceptID: "b", Message: "two"})
	c.Report(report.Entry{ConceptID: "a", Message: "three"})

	assert.Len(t, c.Entries(), 3)
	assert.Equal(t, []string{"one", "three"}, c.For("a"))

	c.Reset()
	assert.Empty(t, c.Entries())
}

func TestCollector_Concurrent(t *testing.T) {
	c := &report.Collector{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(report.Entry{ConceptID: "x", Message: "m"})
		}()
	}
	wg.Wait()
	assert.Len(t, c.Entries(), 20)
}

func TestMulti(t *testing.T) {
	a, b := &report.Collector{}, &report.Collector{}
	r := report.Multi(a, nil, b)
	r.Report(report.Entry{ConceptID: "c", Message: "hello"})

	assert.Equal(t, []string{"hello"}, a.For("c"))
	assert.Equal(t, []string{"hello"}, b.For("c"))
	assert.Same(t, a, report.Multi(nil, a))
}

func TestSlogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := report.NewSlogReporter(logger)

	r.Report(report.Entry{ConceptID: "123", Template: "infection", Level: report.LevelWarn, Message: "rejected"})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=rejected")
	assert.Contains(t, out, "concept=123")
	assert.Contains(t, out, "template=infection")
}

func TestNATSReporter_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	r := report.NewNATSReporter(pub, "", nil)

	r.Report(report.Entry{ConceptID: "123", Level: report.LevelInfo, Message: "changed"})

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, report.DefaultSubject, pub.subjects[0])

	var got report.Entry
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "123", got.ConceptID)
	assert.Equal(t, "changed", got.Message)
}

func TestNATSReporter_PublishFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &fakePublisher{err: errors.New("no responders")}
	r := report.NewNATSReporter(pub, "audit.custom", logger)

	assert.NotPanics(t, func() {
		r.Report(report.Entry{ConceptID: "123", Message: "changed"})
	})
	assert.Contains(t, buf.String(), "Failed to publish audit entry")
	assert.Contains(t, buf.String(), "subject=audit.custom")
}
