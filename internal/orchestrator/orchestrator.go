// Package orchestrator runs the submit cycle: parse the input, post it to
// /predict and move the observable RequestState through
// Idle → Loading → Success/Failed.
//
// Every Submit gets a sequence number and a request id. Starting a new
// Submit cancels the previous one, and only the latest sequence may commit
// its outcome.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/api"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/executor"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/input"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// ErrSuperseded is returned by Submit when a newer submission (or Cancel)
// replaced it before it finished. Its outcome was discarded.
var ErrSuperseded = errors.New("superseded by a newer submission")

// Predictor posts one payload to the prediction endpoint
type Predictor interface {
	Predict(ctx context.Context, payload types.InputPayload, requestID string) (types.PredictionResult, error)
	BaseURL() string
}

// Recorder keeps committed submissions
type Recorder interface {
	Save(sub *types.Submission) error
}

// Input is the raw form. A non-empty FilePath wins and Text is ignored.
type Input struct {
	Text     string
	FilePath string
}

// Orchestrator owns the RequestState. It is safe for concurrent use.
type Orchestrator struct {
	predictor Predictor
	recorder  Recorder
	recordOn  func() bool
	policy    input.Policy
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time

	// transitions serialize state changes with their notifications
	transitions sync.Mutex

	mu     sync.Mutex
	state  types.RequestState
	seq    uint64
	cancel context.CancelFunc

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(types.RequestState)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder saves each committed submission while enabled returns true.
// A nil enabled means always.
func WithRecorder(r Recorder, enabled func() bool) Option {
	return func(o *Orchestrator) {
		o.recorder = r
		o.recordOn = enabled
	}
}

// WithPolicy sets how unparsable tokens are handled
func WithPolicy(p input.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator replaces the UUID request ids
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an idle orchestrator
func New(p Predictor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		predictor: p,
		policy:    input.PolicyStrict,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
		subs:      make(map[int]func(types.RequestState)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state
func (o *Orchestrator) State() types.RequestState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Loading reports whether a submission is in flight
func (o *Orchestrator) Loading() bool {
	return o.State().Loading()
}

// Subscribe registers fn for every state transition. fn must not call
// Submit or Cancel.
func (o *Orchestrator) Subscribe(fn func(types.RequestState)) func() {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

// Submit runs one submit cycle and returns the committed state. A failed
// prediction is a StatusFailed state, not an error; the error is only
// ErrSuperseded.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (types.RequestState, error) {
	payload, parseErr := o.payload(in)

	o.transitions.Lock()
	o.mu.Lock()
	o.seq++
	seq := o.seq
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	id := o.newID()

	if parseErr != nil {
		o.state = types.RequestState{
			Status:    types.StatusFailed,
			Reason:    parseErr.Error(),
			RequestID: id,
			Seq:       seq,
		}
		st := o.state
		o.mu.Unlock()
		o.notify(st)
		o.transitions.Unlock()

		o.logger.Info("input rejected", zap.Uint64("seq", seq), zap.Error(parseErr))
		o.record(st, payload, 0)
		return st, nil
	}

	reqCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state = types.RequestState{
		Status:    types.StatusLoading,
		RequestID: id,
		Seq:       seq,
	}
	loading := o.state
	o.mu.Unlock()
	o.notify(loading)
	o.transitions.Unlock()

	o.logger.Debug("submitting",
		zap.Uint64("seq", seq),
		zap.String("request_id", id),
		zap.String("kind", string(payload.Kind())))

	start := o.now()
	result, err := o.predictor.Predict(reqCtx, payload, id)
	duration := o.now().Sub(start)
	cancel()

	o.transitions.Lock()
	defer o.transitions.Unlock()
	o.mu.Lock()
	if o.seq != seq {
		o.mu.Unlock()
		o.logger.Debug("dropping stale response",
			zap.Uint64("seq", seq),
			zap.String("request_id", id),
			zap.NamedError("cause", err))
		return loading, ErrSuperseded
	}
	o.cancel = nil

	next := types.RequestState{RequestID: id, Seq: seq}
	if err != nil {
		next.Status = types.StatusFailed
		next.Reason = api.PredictionFailedMessage
	} else {
		next.Status = types.StatusSuccess
		next.Result = result
		if payload.Kind() == types.InputText {
			next.Chart = input.Chart(payload.Values)
		}
	}
	o.state = next
	o.mu.Unlock()
	o.notify(next)

	if err != nil {
		o.logger.Warn("prediction failed",
			zap.Uint64("seq", seq),
			zap.String("request_id", id),
			zap.String("category", string(executor.Classify(err))),
			zap.Error(err))
	} else {
		o.logger.Info("prediction succeeded",
			zap.Uint64("seq", seq),
			zap.String("request_id", id),
			zap.Duration("duration", duration))
	}

	o.record(next, payload, duration)
	return next, nil
}

// Cancel abandons the in-flight submission, if any, and returns to Idle
func (o *Orchestrator) Cancel() bool {
	o.transitions.Lock()
	defer o.transitions.Unlock()

	o.mu.Lock()
	if o.state.Status != types.StatusLoading {
		o.mu.Unlock()
		return false
	}
	o.seq++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = types.RequestState{Status: types.StatusIdle, Seq: o.seq}
	st := o.state
	o.mu.Unlock()

	o.notify(st)
	return true
}

func (o *Orchestrator) payload(in Input) (types.InputPayload, error) {
	if path := strings.TrimSpace(in.FilePath); path != "" {
		return types.InputPayload{File: &types.FileInput{Path: path}}, nil
	}
	values, err := input.Parse(in.Text, o.policy)
	if err != nil {
		return types.InputPayload{}, err
	}
	return types.InputPayload{Values: values}, nil
}

func (o *Orchestrator) notify(st types.RequestState) {
	o.subMu.Lock()
	fns := make([]func(types.RequestState), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (o *Orchestrator) record(st types.RequestState, payload types.InputPayload, d time.Duration) {
	if o.recorder == nil || (o.recordOn != nil && !o.recordOn()) {
		return
	}

	sub := &types.Submission{
		RequestID: st.RequestID,
		Timestamp: o.now(),
		Kind:      payload.Kind(),
		Values:    payload.Values,
		Status:    st.Status,
		Result:    st.Result,
		Error:     st.Reason,
		Duration:  d.Milliseconds(),
		BaseURL:   o.predictor.BaseURL(),
	}
	if payload.File != nil {
		sub.FileName = payload.File.Name()
	}

	if err := o.recorder.Save(sub); err != nil {
		o.logger.Warn("failed to record submission", zap.String("request_id", st.RequestID), zap.Error(err))
	}
}
