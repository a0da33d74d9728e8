package mock

import "time"

// Config represents the mock server configuration
type Config struct {
	Port        int               `json:"port" yaml:"port"`                                   // Server port (default: 8080)
	Host        string            `json:"host" yaml:"host"`                                   // Server host (default: 127.0.0.1)
	Variant     string            `json:"variant" yaml:"variant"`                             // classic or deep (default: classic)
	Secret      string            `json:"secret,omitempty" yaml:"secret,omitempty"`           // HS256 signing key
	TokenTTL    int               `json:"tokenTtl,omitempty" yaml:"tokenTtl,omitempty"`       // Token lifetime in minutes (default: 60)
	Delay       int               `json:"delay,omitempty" yaml:"delay,omitempty"`             // Response delay in milliseconds
	Logging     bool              `json:"logging" yaml:"logging"`                             // Keep request logs
	Users       []User            `json:"users,omitempty" yaml:"users,omitempty"`             // Accounts created at startup
	ChatReplies map[string]string `json:"chatReplies,omitempty" yaml:"chatReplies,omitempty"` // keyword → chatbot reply
}

// User is a seeded account
type User struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"requestId,omitempty"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers"`
	User      string            `json:"user,omitempty"`
	Status    int               `json:"status"`
	Duration  time.Duration     `json:"duration"`
}
