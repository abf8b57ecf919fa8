package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/intake"
	"github.com/aiox-platform/companion/internal/orchestrator"
	"github.com/aiox-platform/companion/internal/state"
	"github.com/aiox-platform/companion/internal/workflow"
)

var (
	chatThread     string
	chatCheckpoint string
	chatMemory     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the companion from the terminal",
	Long: `Reads one message per line from stdin and prints each reply.

  /image <path> [text]   attach a picture
  /voice <path>          send a voice note
  /quit                  leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.RateLimit.Enabled = false
		if chatCheckpoint != "" {
			cfg.Checkpoint.Backend = chatCheckpoint
		}
		if chatMemory != "" {
			cfg.Memory.Backend = chatMemory
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := buildCore(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		s := &chatSession{
			thread:    chatThread,
			intake:    c.intake,
			engine:    c.engine,
			artifacts: c.artifacts,
			readFile:  os.ReadFile,
			out:       cmd.OutOrStdout(),
		}
		return s.loop(ctx, cmd.InOrStdin())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatThread, "thread", "local", "conversation thread id")
	chatCmd.Flags().StringVar(&chatCheckpoint, "checkpoint", "sqlite", "checkpoint backend (redis, sqlite, memory)")
	chatCmd.Flags().StringVar(&chatMemory, "memory", "", "override the memory backend (postgres, memory)")
}

type chatSession struct {
	thread    string
	intake    orchestrator.Preparer
	engine    orchestrator.Engine
	artifacts *artifacts.Store
	readFile  func(string) ([]byte, error)
	out       io.Writer
}

var errQuit = errors.New("quit")

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		err := s.turn(ctx, scanner.Text())
		if errors.Is(err, errQuit) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, orchestrator.Apology(err))
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

func (s *chatSession) turn(ctx context.Context, line string) error {
	input, err := s.parseLine(line)
	if err != nil {
		return err
	}
	if input == nil {
		return nil
	}

	msg, err := s.intake.Prepare(ctx, *input)
	if err != nil {
		return err
	}

	streamed := false
	filter := &stageFilter{}
	st, err := s.engine.Run(ctx, s.thread, msg, workflow.RunOptions{
		OnToken: func(tok string) {
			streamed = true
			fmt.Fprint(s.out, filter.Write(tok))
		},
	})
	if err != nil {
		if streamed {
			fmt.Fprintln(s.out)
		}
		return err
	}
	s.render(st, streamed)
	return nil
}

// parseLine returns nil for blank lines.
func (s *chatSession) parseLine(line string) (*intake.Input, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return nil, errQuit
	case "/image":
		path, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		data, err := s.attachment(path)
		if err != nil {
			return nil, err
		}
		return &intake.Input{Text: strings.TrimSpace(text), Image: data}, nil
	case "/voice":
		data, err := s.attachment(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		return &intake.Input{Audio: data}, nil
	}
	return &intake.Input{Text: line}, nil
}

func (s *chatSession) attachment(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("usage: /image <path> [text] or /voice <path>")
	}
	data, err := s.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// stageFilter drops *...* stage directions from streamed tokens, matching
// what the stored reply keeps. Leading whitespace is dropped too.
type stageFilter struct {
	inside  bool
	started bool
}

func (f *stageFilter) Write(tok string) string {
	var b strings.Builder
	for _, r := range tok {
		switch {
		case r == '*':
			f.inside = !f.inside
		case f.inside, !f.started && unicode.IsSpace(r):
		default:
			f.started = true
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *chatSession) render(st *state.TurnState, streamed bool) {
	if streamed {
		fmt.Fprintln(s.out)
	} else if reply, ok := st.LastAssistant(); ok {
		fmt.Fprintln(s.out, reply.Content)
	}
	if st.ImageRef != "" {
		fmt.Fprintln(s.out, "[image]", s.artifacts.Path(st.ImageRef))
	}
	if len(st.AudioBuffer) > 0 {
		name, err := s.artifacts.Save(artifacts.KindAudio, "mp3", st.AudioBuffer)
		if err != nil {
			fmt.Fprintln(s.out, "[audio] could not be saved:", err)
			return
		}
		fmt.Fprintln(s.out, "[audio]", s.artifacts.Path(name))
	}
}
