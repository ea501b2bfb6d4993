// Copyright 2026 gmix Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer tracks the root spans created through it.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := &Span{name: name, status: StatusRunning, total: total, start: time.Now()}
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of all spans, root spans first.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value interface{}) bool {
		span := value.(*Span)
		progress = append(progress, span.list(t.name)...)
		return true
	})
	return progress
}

type Span struct {
	name     string
	total    int
	count    atomic.Int64
	start    time.Time
	children sync.Map
	// mu guards the fields below, which List reads from other goroutines.
	mu     sync.Mutex
	status Status
	err    error
	finish time.Time
}

func (s *Span) Add(n int) {
	s.count.Add(int64(n))
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count.Store(int64(s.total))
		s.finish = time.Now()
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.finish = time.Now()
}

func (s *Span) Count() int {
	return int(s.count.Load())
}

func (s *Span) list(tracer string) []Progress {
	s.mu.Lock()
	errMessage := ""
	if s.err != nil {
		errMessage = s.err.Error()
	}
	progress := []Progress{{
		Tracer:     tracer,
		Name:       s.name,
		Status:     s.status,
		Error:      errMessage,
		Count:      s.Count(),
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}}
	s.mu.Unlock()
	s.children.Range(func(_, value interface{}) bool {
		progress = append(progress, value.(*Span).list(tracer)...)
		return true
	})
	return progress
}

// Start creates a child span of the span carried by ctx. A detached span is
// returned when ctx carries no parent.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	childSpan := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	if ctx == nil {
		return nil, childSpan
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, childSpan
	}
	span.children.Store(name, childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
