package inference

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Session represents a model session from the onnxruntime.
//
// The input and output tensors are bound to the session at creation, so a Run reads the
// inputs in place and overwrites the outputs. Run is serialized with a mutex.
type Session struct {
	Session *ort.AdvancedSession
	Inputs  []*ort.Tensor[float32]
	Outputs []*ort.Tensor[float32]

	mu             sync.Mutex
	inferenceCount int64
	totalTime      time.Duration
}

// SessionMetrics summarizes the runs of a session.
type SessionMetrics struct {
	InferenceCount int64         `json:"inference_count"`
	TotalTime      time.Duration `json:"total_time"`
	AverageTime    time.Duration `json:"average_time"`
}

// Run executes the model once.
//
// Arguments:
//   - fill: Called with the input tensors before the run, under the session lock.
//   - read: Called with the output tensors after a successful run, under the session lock.
//
// Returns:
//   - error: Execution error if any.
func (s *Session) Run(fill func(inputs []*ort.Tensor[float32]) error, read func(outputs []*ort.Tensor[float32]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Session == nil {
		return errors.New("session is closed")
	}
	if err := fill(s.Inputs); err != nil {
		return errors.Wrap(err, "failed to fill input tensors")
	}

	start := time.Now()
	if err := s.Session.Run(); err != nil {
		return errors.Wrap(err, "failed to run inference")
	}
	s.inferenceCount++
	s.totalTime += time.Since(start)

	return read(s.Outputs)
}

// Metrics returns the run statistics of the session.
func (s *Session) Metrics() SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := SessionMetrics{InferenceCount: s.inferenceCount, TotalTime: s.totalTime}
	if s.inferenceCount > 0 {
		m.AverageTime = s.totalTime / time.Duration(s.inferenceCount)
	}
	return m
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: The combined errors of every tensor and session destroyed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, t := range s.Inputs {
		err = multierr.Append(err, t.Destroy())
	}
	s.Inputs = nil
	for _, t := range s.Outputs {
		err = multierr.Append(err, t.Destroy())
	}
	s.Outputs = nil
	if s.Session != nil {
		err = multierr.Append(err, s.Session.Destroy())
		s.Session = nil
	}
	return err
}
