package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/conversation"
	"github.com/fwojciec/dataops/goldmark"
	"github.com/spf13/cobra"
)

var (
	askAgentURL string
	askYes      bool
	askWidth    int
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askAgentURL, "agent-url", "", "Use the agent backend at this URL instead of a local one")
	askCmd.Flags().BoolVarP(&askYes, "yes", "y", false, "Run the query without asking")
	askCmd.Flags().IntVar(&askWidth, "width", 100, "Wrap output at this many columns")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agent, closeAgent, err := openAgent(ctx, askAgentURL, os.Stderr)
	if err != nil {
		return err
	}
	defer closeAgent()

	conv := conversation.New(agent, "cli_user")
	if err := conv.Start(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	a := &asker{
		conv:   conv,
		out:    cmd.OutOrStdout(),
		in:     bufio.NewReader(cmd.InOrStdin()),
		yes:    askYes,
		width:  askWidth,
		theme:  dataops.DefaultTheme(),
		errors: make(chan error, 1),
	}
	return a.ask(ctx, strings.Join(args, " "))
}

// asker prints one invocation and answers its consent request.
type asker struct {
	conv  *conversation.Client
	out   io.Writer
	in    *bufio.Reader
	yes   bool
	width int
	theme dataops.Theme

	errors chan error
}

func (a *asker) ask(ctx context.Context, question string) error {
	if err := a.conv.Submit(ctx, question, func(e dataops.Event) {
		fmt.Fprintln(a.out, goldmark.Render(dataops.RenderEvent(e), a.width, a.theme))
		if p, ok := dataops.ConsentPrompt(e); ok {
			go a.consent(ctx, p)
		}
	}); err != nil {
		return err
	}

	select {
	case err := <-a.errors:
		return err
	default:
	}
	history := a.conv.History()
	if n := len(history); n > 0 && len(history[n-1].Events) == 0 {
		return errors.New(strings.TrimPrefix(strings.Join(history[n-1].Rendered, "\n"), "Error: "))
	}
	return nil
}

// consent asks for, or assumes, a decision and delivers it once the
// pipeline is waiting for it.
func (a *asker) consent(ctx context.Context, p dataops.ToolCallPart) {
	approve := a.yes
	if !approve {
		fmt.Fprintf(a.out, "Run this query? It will process %s. [y/N] ", dataops.FormatBytes(p.Args["bytes_processed"]))
		line, _ := a.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		approve = answer == "y" || answer == "yes"
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := a.conv.Consent(ctx, approve)
		if err != nil && !errors.Is(err, dataops.ErrNoPendingConsent) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(50*time.Millisecond)), backoff.WithMaxElapsedTime(10*time.Second))
	if err != nil {
		select {
		case a.errors <- fmt.Errorf("send consent: %w", err):
		default:
		}
	}
}
