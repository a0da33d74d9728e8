// Package chatbot is a line-oriented conversation with the /chatbot endpoint.
package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FailedMessage is shown when the chatbot cannot be reached
const FailedMessage = "Error contacting the chatbot. Please try again."

// ErrEmptyMessage is returned for blank input
var ErrEmptyMessage = errors.New("message is empty")

// Sender posts one message and returns the reply
type Sender interface {
	Chat(ctx context.Context, message string) (string, error)
}

// Role identifies who wrote a Turn
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one line of the transcript
type Turn struct {
	Role Role
	Text string
	At   time.Time
	// Failed marks a bot turn that stands in for an error
	Failed bool
}

// Conversation keeps the transcript of one chat session. The server is
// stateless, so every Send carries only its own message.
type Conversation struct {
	sender Sender
	logger *zap.Logger

	mu    sync.Mutex
	turns []Turn
}

// New starts an empty conversation
func New(sender Sender, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{sender: sender, logger: logger}
}

// Send posts message and appends both sides to the transcript. On failure
// the transcript records FailedMessage and the error is returned.
func (c *Conversation) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	c.append(Turn{Role: RoleUser, Text: message, At: time.Now()})

	reply, err := c.sender.Chat(ctx, message)
	if err != nil {
		c.logger.Warn("chatbot request failed", zap.Error(err))
		c.append(Turn{Role: RoleBot, Text: FailedMessage, At: time.Now(), Failed: true})
		return "", err
	}

	c.append(Turn{Role: RoleBot, Text: reply, At: time.Now()})
	return reply, nil
}

// Transcript returns a copy of all turns so far
func (c *Conversation) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) append(t Turn) {
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
}

// REPL commands
const (
	cmdQuit    = "/quit"
	cmdExit    = "/exit"
	cmdHistory = "/history"
)

// RunREPL reads one message per line from in until EOF, /quit or ctx is
// done, writing replies to out.
func (c *Conversation) RunREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Chat with the assistant. Type /quit to leave, /history for the transcript.")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case cmdQuit, cmdExit:
			return nil
		case cmdHistory:
			for _, t := range c.Transcript() {
				fmt.Fprintf(out, "[%s] %s: %s\n", t.At.Format("15:04:05"), t.Role, t.Text)
			}
			continue
		}

		reply, err := c.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, FailedMessage)
			continue
		}
		fmt.Fprintln(out, reply)
	}
}
