package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/executor"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Endpoint paths on the prediction API
const (
	PathPredict  = "/predict"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathHistory  = "/history"
	PathChatbot  = "/chatbot"
)

// RequestIDHeader carries the client-side submission id
const RequestIDHeader = "X-Request-ID"

// Executor sends a prepared request
type Executor interface {
	Execute(ctx context.Context, req *types.HttpRequest, opts ...executor.RequestOption) (*types.RequestResult, error)
}

// TokenSource supplies the current bearer token; empty means anonymous
type TokenSource interface {
	Token() string
}

// Client talks to the prediction API at a fixed base URL
type Client struct {
	baseURL string
	exec    Executor
	tokens  TokenSource
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource attaches the session used for Authorization headers
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, exec Executor, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		exec:    exec,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current bearer token, if any
func (c *Client) Token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// Credentials is the login/register body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful POST /login
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type registerResponse struct {
	Message string `json:"message"`
}

type predictRequest struct {
	ExpressionValues types.Values `json:"expression_values"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Predict posts one payload. A file is sent as multipart field "file" and
// wins over values. The returned result is the decoded body untouched.
func (c *Client) Predict(ctx context.Context, payload types.InputPayload, requestID string) (types.PredictionResult, error) {
	req := &types.HttpRequest{
		Name:    "predict",
		Method:  http.MethodPost,
		URL:     c.url(PathPredict),
		Headers: map[string]string{},
	}

	if payload.Kind() == types.InputFile {
		body, contentType, err := executor.MultipartFile("file", payload.File.Path, payload.File.Name())
		if err != nil {
			return nil, &StatusError{Op: "predict", Err: err}
		}
		req.Body = body
		req.Headers["Content-Type"] = contentType
	} else {
		body, err := json.Marshal(predictRequest{ExpressionValues: nonNil(payload.Values)})
		if err != nil {
			return nil, &StatusError{Op: "predict", Err: fmt.Errorf("failed to encode values: %w", err)}
		}
		req.Body = string(body)
		req.Headers["Content-Type"] = "application/json"
	}

	opts := c.authOptions()
	if requestID != "" {
		opts = append(opts, executor.WithHeader(RequestIDHeader, requestID))
	}

	result, err := c.do(ctx, "predict", req, opts...)
	if err != nil {
		return nil, err
	}

	var out types.PredictionResult
	if err := decodeNumber(result.Body, &out); err != nil {
		return nil, &StatusError{Op: "predict", Status: result.Status, Body: result.Body, Err: fmt.Errorf("invalid prediction body: %w", err)}
	}
	if out == nil {
		return nil, &StatusError{Op: "predict", Status: result.Status, Body: result.Body, Err: errors.New("prediction body is not an object")}
	}
	return out, nil
}

// Login posts credentials and returns the token and server message
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	result, err := c.postAuth(ctx, "login", PathLogin, username, password)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := json.Unmarshal([]byte(result.Body), &out); err != nil {
		return nil, &AuthError{Op: "login", Status: result.Status, Message: "Login failed", Err: err}
	}
	if out.Token == "" {
		return nil, &AuthError{Op: "login", Status: result.Status, Message: "Login failed: no token in response"}
	}
	return &out, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	result, err := c.postAuth(ctx, "register", PathRegister, username, password)
	if err != nil {
		return "", err
	}

	var out registerResponse
	if err := json.Unmarshal([]byte(result.Body), &out); err != nil {
		c.logger.Debug("register response not JSON", zap.Error(err))
	}
	return out.Message, nil
}

// History fetches the caller's past predictions
func (c *Client) History(ctx context.Context) ([]types.HistoryEntry, error) {
	req := &types.HttpRequest{
		Name:   "history",
		Method: http.MethodGet,
		URL:    c.url(PathHistory),
	}

	result, err := c.do(ctx, "history", req, c.authOptions()...)
	if err != nil {
		return nil, err
	}

	var entries []types.HistoryEntry
	if err := json.Unmarshal([]byte(result.Body), &entries); err != nil {
		return nil, &StatusError{Op: "history", Status: result.Status, Body: result.Body, Err: fmt.Errorf("invalid history body: %w", err)}
	}
	return entries, nil
}

// Chat sends one message to the chatbot endpoint
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", err
	}
	req := &types.HttpRequest{
		Name:    "chatbot",
		Method:  http.MethodPost,
		URL:     c.url(PathChatbot),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    string(body),
	}

	result, err := c.do(ctx, "chatbot", req)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal([]byte(result.Body), &out); err != nil {
		return "", &StatusError{Op: "chatbot", Status: result.Status, Body: result.Body, Err: fmt.Errorf("invalid chatbot body: %w", err)}
	}
	return out.Response, nil
}

func (c *Client) postAuth(ctx context.Context, op, path, username, password string) (*types.RequestResult, error) {
	body, err := json.Marshal(Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	req := &types.HttpRequest{
		Name:    op,
		Method:  http.MethodPost,
		URL:     c.url(path),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    string(body),
	}

	result, err := c.do(ctx, op, req)
	if err == nil {
		return result, nil
	}

	var se *StatusError
	if !errors.As(err, &se) {
		return nil, err
	}
	msg := serverMessage(se.Body)
	if msg == "" {
		msg = authFallback(op)
		if se.Status == 0 {
			c.logger.Warn("auth request failed",
				zap.String("op", op),
				zap.String("reason", executor.CategorizeError(se.Err)))
			msg += ". Please try again."
		}
	}
	return nil, &AuthError{Op: op, Status: se.Status, Message: msg, Err: err}
}

// do executes req and turns transport failures and non-2xx into *StatusError
func (c *Client) do(ctx context.Context, op string, req *types.HttpRequest, opts ...executor.RequestOption) (*types.RequestResult, error) {
	result, err := c.exec.Execute(ctx, req, opts...)
	if err != nil {
		return nil, &StatusError{Op: op, Err: err}
	}
	if result.Error != "" {
		c.logger.Warn("api request failed",
			zap.String("op", op),
			zap.String("reason", executor.CategorizeMessage(result.Error)),
			zap.String("error", result.Error))
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New(result.Error)
		}
		return nil, &StatusError{Op: op, Err: cause}
	}
	if !executor.IsSuccessStatus(result.Status) {
		c.logger.Warn("api returned error status",
			zap.String("op", op),
			zap.Int("status", result.Status),
			zap.Int("body_bytes", result.ResponseSize))
		return nil, &StatusError{Op: op, Status: result.Status, Body: result.Body}
	}
	return result, nil
}

func (c *Client) authOptions() []executor.RequestOption {
	token := c.Token()
	if token == "" {
		return nil
	}
	return []executor.RequestOption{bearer(token)}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// bearer sets "Authorization: Bearer <token>"
func bearer(token string) executor.RequestOption {
	return func(r *http.Request) {
		(&oauth2.Token{AccessToken: token}).SetAuthHeader(r)
	}
}

func authFallback(op string) string {
	if op == "register" {
		return "Registration failed"
	}
	return "Login failed"
}

func decodeNumber(body string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	return dec.Decode(v)
}

func nonNil(v types.Values) types.Values {
	if v == nil {
		return types.Values{}
	}
	return v
}
