package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/chatbot"
)

// Chat sends one message when message is set, otherwise runs the REPL
func Chat(ctx context.Context, a *app.App, message string, in io.Reader, out io.Writer) error {
	if message == "" {
		return a.Chat.RunREPL(ctx, in, out)
	}

	reply, err := a.Chat.Send(ctx, message)
	if err != nil {
		fmt.Fprintf(out, "%s%s%s\n", colorRed, chatbot.FailedMessage, colorReset)
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}
