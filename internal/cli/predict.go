package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/orchestrator"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// ErrRequestFailed is returned after a Failed state has been printed, so
// the caller can exit non-zero without printing it twice
var ErrRequestFailed = errors.New("prediction failed")

// PredictOptions contains options for a one-shot prediction
type PredictOptions struct {
	Values string // comma-separated expression values
	File   string // CSV file; wins over Values
	OutputOptions
}

// Predict submits once and prints the committed state
func Predict(ctx context.Context, a *app.App, opts PredictOptions, out io.Writer) error {
	in := orchestrator.Input{Text: opts.Values, FilePath: opts.File}

	// values may be piped in when neither flag is given
	if in.FilePath == "" && in.Text == "" && !isTerminal(os.Stdin) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read values from stdin: %w", err)
		}
		in.Text = strings.TrimSpace(string(data))
	}

	st, err := a.Orchestrator.Submit(ctx, in)
	if err != nil {
		return err
	}

	opts.Format = resolveFormat(opts.Format)
	rendered, err := FormatState(st, opts.OutputOptions)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if err := write(out, rendered, opts.OutputOptions); err != nil {
		return err
	}

	if st.Status == types.StatusFailed {
		return ErrRequestFailed
	}
	return nil
}
