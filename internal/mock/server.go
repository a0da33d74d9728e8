package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxUploadSize bounds CSV uploads
const maxUploadSize = 10 << 20

// Server is an in-memory stand-in for the prediction API
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	handler    http.Handler
	logger     *zap.Logger

	users  *users
	tokens *tokens

	historyMu sync.RWMutex
	history   map[string][]historyRecord

	logs      []RequestLog
	logsMutex sync.RWMutex
	notifyCh  chan struct{} // Channel to notify when new log arrives
}

type historyRecord struct {
	ExpressionValues       []float64 `json:"expression_values"`
	RandomForestPrediction string    `json:"RandomForestPrediction"`
	SVMPrediction          string    `json:"SVM_Prediction"`
	CreatedAt              string    `json:"created_at"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ctxKey string

const userKey ctxKey = "user"

// NewServer creates a mock server and seeds its users
func NewServer(config *Config, logger *zap.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Variant == "" {
		config.Variant = VariantClassic
	}
	if config.Secret == "" {
		config.Secret = defaultSecret
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 60
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger,
		users:  newUsers(),
		tokens: &tokens{
			secret: []byte(config.Secret),
			ttl:    time.Duration(config.TokenTTL) * time.Minute,
			now:    time.Now,
		},
		history:  make(map[string][]historyRecord),
		logs:     make([]RequestLog, 0),
		notifyCh: make(chan struct{}, 100), // Buffered channel for notifications
	}

	for _, u := range config.Users {
		if err := s.users.register(u.Username, u.Password); err != nil {
			return nil, fmt.Errorf("failed to seed user %q: %w", u.Username, err)
		}
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)
	if s.config.Delay > 0 {
		r.Use(s.delay)
	}

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/chatbot", s.handleChatbot)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(s.config.Variant == VariantDeep))
		r.Post("/predict", s.handlePredict)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(true))
		r.Get("/history", s.handleHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path))
	})

	return r
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("mock server error", zap.Error(err))
		}
	}()

	s.logger.Info("mock server listening",
		zap.String("addr", s.GetAddress()),
		zap.String("variant", s.config.Variant))
	return nil
}

// Stop stops the mock server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server's base URL; after Start it reflects the
// bound port
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return "http://" + net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	if err := s.users.register(c.Username, c.Password); err != nil {
		if errors.Is(err, errUserExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	if err := s.users.verify(c.Username, c.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := s.tokens.issue(c.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"message": "Login successful",
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	values, err := s.readValues(w, r)
	if err != nil {
		s.logger.Debug("rejecting predict input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	var body map[string]any
	if s.config.Variant == VariantDeep {
		label, confidence := deepLearning(values)
		body = map[string]any{
			"DeepLearningPrediction": label,
			"Confidence":             confidence,
		}
	} else {
		body = map[string]any{
			"RandomForestPrediction": randomForest(values),
			"SVM_Prediction":         svm(values),
		}
	}

	if user, ok := r.Context().Value(userKey).(string); ok && user != "" {
		s.recordHistory(user, values)
	}

	writeJSON(w, http.StatusOK, body)
}

// readValues accepts a JSON body or a multipart CSV under "file"
func (s *Server) readValues(w http.ResponseWriter, r *http.Request) ([]float64, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return valuesFromCSV(f)
	}

	var payload struct {
		ExpressionValues []*float64 `json:"expression_values"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize)).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.ExpressionValues) == 0 {
		return nil, errNoValues
	}

	values := make([]float64, len(payload.ExpressionValues))
	for i, v := range payload.ExpressionValues {
		if v == nil {
			return nil, fmt.Errorf("value %d is null", i)
		}
		values[i] = *v
	}
	return values, nil
}

func (s *Server) recordHistory(user string, values []float64) {
	rec := historyRecord{
		ExpressionValues:       values,
		RandomForestPrediction: randomForest(values),
		SVMPrediction:          svm(values),
		CreatedAt:              time.Now().UTC().Format(time.RFC3339),
	}

	s.historyMu.Lock()
	s.history[user] = append(s.history[user], rec)
	s.historyMu.Unlock()
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := r.Context().Value(userKey).(string)

	s.historyMu.RLock()
	records := s.history[user]
	out := make([]historyRecord, len(records))
	// newest first
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	s.historyMu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": s.reply(payload.Message)})
}

func (s *Server) reply(message string) string {
	lower := strings.ToLower(message)
	for keyword, reply := range s.config.ChatReplies {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return reply
		}
	}
	return fmt.Sprintf("You asked: %q. Submit comma-separated expression values to get a prediction.", strings.TrimSpace(message))
}

// authenticate puts the token subject in the request context. With
// required=false a missing header is allowed but a bad token is not.
func (s *Server) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			user, err := s.tokens.subject(header)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) delay(next http.Handler) http.Handler {
	d := time.Duration(s.config.Delay) * time.Millisecond
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		s.logger.Debug("mock request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", duration))

		if s.config.Logging {
			user, _ := s.tokens.subject(r.Header.Get("Authorization"))
			s.logRequest(RequestLog{
				Timestamp: start,
				RequestID: chimiddleware.GetReqID(r.Context()),
				Method:    r.Method,
				Path:      r.URL.Path,
				Headers:   flattenHeaders(r.Header),
				User:      user,
				Status:    status,
				Duration:  duration,
			})
		}
	})
}

// logRequest adds a request to the log
func (s *Server) logRequest(log RequestLog) {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, log)

	// Keep only last 1000 logs
	if len(s.logs) > 1000 {
		s.logs = s.logs[len(s.logs)-1000:]
	}

	// Notify listeners (non-blocking)
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// NotifyChannel returns the notification channel
func (s *Server) NotifyChannel() <-chan struct{} {
	return s.notifyCh
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}

// flattenHeaders converts http.Header to map[string]string (first value only).
// Authorization is redacted.
func flattenHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if strings.EqualFold(key, "Authorization") {
			result[key] = "[redacted]"
			continue
		}
		result[key] = values[0]
	}
	return result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
