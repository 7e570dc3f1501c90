package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/planbridge/internal/controller"
	"github.com/user/planbridge/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Iterate on a plan from the terminal",
	Long: `Type a task to get a plan, then type follow-ups to revise it.

Commands:
  /clear          start over
  /copy           copy the latest message to the clipboard
  /models         list models
  /model <name>   switch model
  /quit           exit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	p := newPrinter(out)
	defer a.session.Watch(p.view)()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := chatLine(ctx, a.session, out, line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if quit {
			return nil
		}
		if !strings.HasPrefix(line, "/") {
			select {
			case <-p.done:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// chatLine applies one line of input. quit is true for /quit.
func chatLine(ctx context.Context, session *controller.Session, out io.Writer, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		return false, session.Do(ctx, func(c *controller.Controller) error {
			return c.ClearHistory(ctx)
		})
	case "/copy":
		return false, session.Do(ctx, func(c *controller.Controller) error {
			if c.CopyLatest() {
				fmt.Fprintln(out, "copied")
			} else {
				fmt.Fprintln(out, "nothing copied")
			}
			return nil
		})
	case "/models":
		v, err := session.View(ctx)
		if err != nil {
			return false, err
		}
		for _, m := range v.Models.Options {
			marker := " "
			if m.Model == v.Models.Active.Model {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s (%s)\n", marker, m.Model, m.Provider)
		}
		return false, nil
	case "/model":
		return false, session.Do(ctx, func(c *controller.Controller) error {
			if err := c.OpenModelSelector(); err != nil {
				return err
			}
			if err := c.SelectModel(strings.TrimSpace(arg)); err != nil {
				return errors.Join(err, c.CloseModelSelector(ctx))
			}
			return c.CloseModelSelector(ctx)
		})
	}
	return false, session.Do(ctx, func(c *controller.Controller) error {
		if err := c.SetDraft(line, len(line)); err != nil {
			return err
		}
		return c.Submit(ctx)
	})
}

// printer echoes the streaming plan and signals done when the panel
// returns from AwaitingResponse.
type printer struct {
	out  io.Writer
	done chan struct{}

	mu       sync.Mutex
	awaiting bool
	current  types.MessageID
	shown    string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, done: make(chan struct{}, 1)}
}

func (p *printer) view(v controller.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(v.Messages); n > 0 {
		last := v.Messages[n-1]
		if last.Role == types.RoleAssistant {
			if last.ID != p.current {
				p.current = last.ID
				p.shown = ""
			}
			switch {
			case strings.HasPrefix(last.Text, p.shown):
				fmt.Fprint(p.out, last.Text[len(p.shown):])
			default:
				fmt.Fprint(p.out, "\n"+last.Text)
			}
			p.shown = last.Text
		}
	}

	switch {
	case v.Phase == controller.PhaseAwaitingResponse:
		p.awaiting = true
	case p.awaiting:
		p.awaiting = false
		fmt.Fprintln(p.out)
		select {
		case p.done <- struct{}{}:
		default:
		}
	}
}
