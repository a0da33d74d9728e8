package types

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Well-known prediction fields returned by the classic and deep-learning variants
const (
	FieldRandomForest = "RandomForestPrediction"
	FieldSVM          = "SVM_Prediction"
	FieldDeepLearning = "DeepLearningPrediction"
	FieldConfidence   = "Confidence"
)

// HttpRequest is a single outgoing API call
type HttpRequest struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// TLSConfig contains TLS/mTLS settings for the API connection
type TLSConfig struct {
	CertFile           string `json:"cert,omitempty"`
	KeyFile            string `json:"key,omitempty"`
	CAFile             string `json:"ca,omitempty"`
	InsecureSkipVerify bool   `json:"insecure,omitempty"`
}

// RequestResult contains the HTTP response data
type RequestResult struct {
	Status       int               `json:"status" yaml:"status"`
	StatusText   string            `json:"statusText" yaml:"statusText"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	Body         string            `json:"body" yaml:"body"`
	Duration     int64             `json:"duration" yaml:"duration"`         // milliseconds
	RequestSize  int               `json:"requestSize" yaml:"requestSize"`   // bytes
	ResponseSize int               `json:"responseSize" yaml:"responseSize"` // bytes
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Session is the persisted client state
type Session struct {
	Token          string `json:"token,omitempty"`
	HistoryEnabled *bool  `json:"historyEnabled,omitempty"`
}

// InputKind tells which half of an InputPayload is active
type InputKind string

const (
	InputText InputKind = "text"
	InputFile InputKind = "file"
)

// FileInput is a CSV file selected for upload
type FileInput struct {
	Path string `json:"path"`
}

// Name returns the base name sent as the multipart filename
func (f FileInput) Name() string {
	return filepath.Base(f.Path)
}

// Values is an ordered sequence of expression values. Non-finite entries
// encode as JSON null, the way the browser client serialized NaN.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	out := make([]any, len(v))
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out[i] = nil
			continue
		}
		out[i] = f
	}
	return json.Marshal(out)
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for i, f := range raw {
		if f == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *f
	}
	*v = out
	return nil
}

// InputPayload is what one submission sends. When File is set the
// values are ignored.
type InputPayload struct {
	Values Values     `json:"values,omitempty"`
	File   *FileInput `json:"file,omitempty"`
}

// Kind reports which input is active
func (p InputPayload) Kind() InputKind {
	if p.File != nil {
		return InputFile
	}
	return InputText
}

// PredictionResult is the server's JSON object, kept verbatim
type PredictionResult map[string]any

// Label returns a string field of the result
func (r PredictionResult) Label(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RandomForest returns the RandomForestPrediction label
func (r PredictionResult) RandomForest() (string, bool) { return r.Label(FieldRandomForest) }

// SVM returns the SVM_Prediction label
func (r PredictionResult) SVM() (string, bool) { return r.Label(FieldSVM) }

// DeepLearning returns the DeepLearningPrediction label
func (r PredictionResult) DeepLearning() (string, bool) { return r.Label(FieldDeepLearning) }

// Confidence returns the Confidence score if the server sent a number
func (r PredictionResult) Confidence() (float64, bool) {
	switch v := r[FieldConfidence].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Keys returns the result's field names in display order: well-known
// fields first, then the rest alphabetically.
func (r PredictionResult) Keys() []string {
	known := []string{FieldRandomForest, FieldSVM, FieldDeepLearning, FieldConfidence}
	keys := make([]string, 0, len(r))
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		if _, ok := r[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var rest []string
	for k := range r {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// RequestStatus is the lifecycle position of a submission
type RequestStatus int

const (
	StatusIdle RequestStatus = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RequestStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "loading":
		*s = StatusLoading
	case "success":
		*s = StatusSuccess
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown request status %q", text)
	}
	return nil
}

// ChartDataset is one bar per expression value
type ChartDataset struct {
	Label  string   `json:"label"`
	Labels []string `json:"labels"`
	Values Values   `json:"values"`
}

// RequestState is the orchestrator's observable state. Result is set only
// in StatusSuccess and Reason only in StatusFailed.
type RequestState struct {
	Status    RequestStatus    `json:"status"`
	Result    PredictionResult `json:"result,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Chart     *ChartDataset    `json:"chart,omitempty"`
	RequestID string           `json:"requestId,omitempty"`
	Seq       uint64           `json:"seq,omitempty"`
}

// Loading reports whether a request is in flight
func (s RequestState) Loading() bool {
	return s.Status == StatusLoading
}

// HistoryEntry is one record returned by GET /history
type HistoryEntry struct {
	ExpressionValues       Values `json:"expression_values"`
	RandomForestPrediction string `json:"RandomForestPrediction"`
	SVMPrediction          string `json:"SVM_Prediction"`
	CreatedAt              string `json:"created_at"`
}

// Submission is one completed submit cycle, kept in the local log
type Submission struct {
	ID        int64            `json:"id"`
	RequestID string           `json:"requestId"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      InputKind        `json:"kind"`
	Values    Values           `json:"values,omitempty"`
	FileName  string           `json:"fileName,omitempty"`
	Status    RequestStatus    `json:"status"`
	Result    PredictionResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	Duration  int64            `json:"duration"` // milliseconds
	BaseURL   string           `json:"baseUrl"`
}
