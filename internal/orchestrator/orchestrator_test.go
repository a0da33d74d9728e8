package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/api"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/input"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type predictFunc func(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error)

type fakePredictor struct {
	mu       sync.Mutex
	fn       predictFunc
	payloads []types.InputPayload
	ids      []string
}

func (f *fakePredictor) Predict(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.ids = append(f.ids, id)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, payload, id)
}

func (f *fakePredictor) BaseURL() string { return "http://127.0.0.1:8080" }

func (f *fakePredictor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type memRecorder struct {
	mu   sync.Mutex
	subs []types.Submission
}

func (r *memRecorder) Save(s *types.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *s)
	return nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func TestSubmitTextSuccess(t *testing.T) {
	want := types.PredictionResult{"RandomForestPrediction": "Disease A", "SVM_Prediction": "Disease A"}
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		return want, nil
	}}
	o := New(p, WithIDGenerator(sequentialIDs()))

	var seen []types.RequestStatus
	o.Subscribe(func(st types.RequestState) { seen = append(seen, st.Status) })

	st, err := o.Submit(context.Background(), Input{Text: "1.2, 0.5, -0.8"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if st.Status != types.StatusSuccess || o.Loading() {
		t.Fatalf("state = %+v loading=%v", st, o.Loading())
	}
	if diff := cmp.Diff(want, st.Result); diff != "" {
		t.Errorf("result changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(types.Values{1.2, 0.5, -0.8}, p.payloads[0].Values); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if st.Chart == nil {
		t.Fatal("text input should produce a chart")
	}
	if diff := cmp.Diff([]string{"Gene 1", "Gene 2", "Gene 3"}, st.Chart.Labels); diff != "" {
		t.Errorf("chart labels (-want +got):\n%s", diff)
	}
	if st.RequestID != "req-1" || p.ids[0] != "req-1" {
		t.Errorf("request id = %q / %q", st.RequestID, p.ids[0])
	}
	if diff := cmp.Diff([]types.RequestStatus{types.StatusLoading, types.StatusSuccess}, seen); diff != "" {
		t.Errorf("transitions (-want +got):\n%s", diff)
	}
}

func TestSubmitFailureClearsLoading(t *testing.T) {
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		return nil, &api.StatusError{Op: "predict", Status: 500}
	}}
	o := New(p)

	st, err := o.Submit(context.Background(), Input{Text: "1"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if st.Status != types.StatusFailed {
		t.Errorf("Status = %v, want failed", st.Status)
	}
	if st.Reason != api.PredictionFailedMessage {
		t.Errorf("Reason = %q", st.Reason)
	}
	if st.Result != nil || st.Chart != nil {
		t.Error("failed state must not carry a result or chart")
	}
	if o.Loading() {
		t.Error("loading flag still set after failure")
	}
}

func TestFileWinsOverText(t *testing.T) {
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		return types.PredictionResult{"DeepLearningPrediction": "Healthy"}, nil
	}}
	o := New(p)

	// strict mode would reject this text, but the file takes precedence
	st, err := o.Submit(context.Background(), Input{Text: "not,numbers", FilePath: "/tmp/genes.csv"})
	if err != nil {
		t.Fatal(err)
	}

	if st.Status != types.StatusSuccess {
		t.Fatalf("Status = %v (%s)", st.Status, st.Reason)
	}
	got := p.payloads[0]
	if got.Kind() != types.InputFile || got.File.Path != "/tmp/genes.csv" || got.Values != nil {
		t.Errorf("payload = %+v", got)
	}
	if st.Chart != nil {
		t.Error("file input must not produce a chart")
	}
}

func TestStrictRejectsWithoutSending(t *testing.T) {
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		t.Error("predictor must not be called")
		return nil, nil
	}}
	o := New(p, WithPolicy(input.PolicyStrict))

	st, err := o.Submit(context.Background(), Input{Text: "1.2, abc"})
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != types.StatusFailed {
		t.Errorf("Status = %v", st.Status)
	}
	if st.Reason != (&input.ParseError{Index: 1, Token: "abc"}).Error() {
		t.Errorf("Reason = %q", st.Reason)
	}
	if p.calls() != 0 {
		t.Errorf("predictor called %d times", p.calls())
	}
}

func TestPassthroughSendsNaN(t *testing.T) {
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		return types.PredictionResult{}, nil
	}}
	o := New(p, WithPolicy(input.PolicyPassthrough))

	if _, err := o.Submit(context.Background(), Input{Text: "1, abc"}); err != nil {
		t.Fatal(err)
	}
	vals := p.payloads[0].Values
	if len(vals) != 2 || vals[0] != 1 || vals[1] == vals[1] {
		t.Errorf("values = %v, want [1 NaN]", vals)
	}
}

func TestNewerSubmissionSupersedes(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once

	p := &fakePredictor{fn: func(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error) {
		if id == "req-1" {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return types.PredictionResult{"RandomForestPrediction": "second"}, nil
	}}
	o := New(p, WithIDGenerator(sequentialIDs()))

	type outcome struct {
		st  types.RequestState
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		st, err := o.Submit(context.Background(), Input{Text: "1"})
		first <- outcome{st, err}
	}()
	<-started

	st, err := o.Submit(context.Background(), Input{Text: "2"})
	if err != nil {
		t.Fatalf("second Submit() error: %v", err)
	}
	if label, _ := st.Result.RandomForest(); label != "second" {
		t.Errorf("second result = %v", st.Result)
	}

	got := <-first
	if !errors.Is(got.err, ErrSuperseded) {
		t.Errorf("first Submit() error = %v, want ErrSuperseded", got.err)
	}

	final := o.State()
	if final.RequestID != "req-2" || final.Status != types.StatusSuccess || final.Seq != 2 {
		t.Errorf("final state = %+v", final)
	}
}

func TestStaleResponseDoesNotOverwrite(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	// The first request ignores cancellation and answers late
	p := &fakePredictor{fn: func(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error) {
		if id == "req-1" {
			close(started)
			<-release
			return types.PredictionResult{"RandomForestPrediction": "stale"}, nil
		}
		return types.PredictionResult{"RandomForestPrediction": "fresh"}, nil
	}}
	o := New(p, WithIDGenerator(sequentialIDs()))

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), Input{Text: "1"})
		done <- err
	}()
	<-started

	if _, err := o.Submit(context.Background(), Input{Text: "2"}); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale Submit() error = %v", err)
	}
	if label, _ := o.State().Result.RandomForest(); label != "fresh" {
		t.Errorf("state result = %q, want fresh", label)
	}
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	p := &fakePredictor{fn: func(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o := New(p)

	if o.Cancel() {
		t.Error("Cancel() on idle orchestrator returned true")
	}

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), Input{Text: "1"})
		done <- err
	}()
	<-started

	if !o.Cancel() {
		t.Error("Cancel() returned false while loading")
	}
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Submit() error = %v", err)
	}
	if st := o.State(); st.Status != types.StatusIdle {
		t.Errorf("Status = %v, want idle", st.Status)
	}
}

func TestRecorder(t *testing.T) {
	p := &fakePredictor{fn: func(context.Context, types.InputPayload, string) (types.PredictionResult, error) {
		return types.PredictionResult{"SVM_Prediction": "A"}, nil
	}}
	rec := &memRecorder{}
	enabled := true
	o := New(p, WithRecorder(rec, func() bool { return enabled }), WithIDGenerator(sequentialIDs()))

	o.Submit(context.Background(), Input{Text: "1,2"})
	o.Submit(context.Background(), Input{FilePath: "/data/genes.csv"})
	enabled = false
	o.Submit(context.Background(), Input{Text: "3"})

	if len(rec.subs) != 2 {
		t.Fatalf("recorded %d submissions, want 2", len(rec.subs))
	}
	first := rec.subs[0]
	if first.RequestID != "req-1" || first.Kind != types.InputText || first.Status != types.StatusSuccess {
		t.Errorf("first = %+v", first)
	}
	if first.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("BaseURL = %q", first.BaseURL)
	}
	second := rec.subs[1]
	if second.Kind != types.InputFile || second.FileName != "genes.csv" {
		t.Errorf("second = %+v", second)
	}
}

func TestConcurrentSubmitsLeaveOneWinner(t *testing.T) {
	p := &fakePredictor{fn: func(ctx context.Context, payload types.InputPayload, id string) (types.PredictionResult, error) {
		return types.PredictionResult{"id": id}, nil
	}}
	o := New(p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Submit(context.Background(), Input{Text: "1"})
		}()
	}
	wg.Wait()

	st := o.State()
	if st.Status != types.StatusSuccess {
		t.Fatalf("final status = %v", st.Status)
	}
	if st.Seq != 20 {
		t.Errorf("final Seq = %d, want 20", st.Seq)
	}
	if st.Result["id"] != st.RequestID {
		t.Errorf("result %v belongs to another request than %s", st.Result["id"], st.RequestID)
	}
}
