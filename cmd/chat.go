package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atelier-ai/atelier/internal/app"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/orchestrator"
	"github.com/atelier-ai/atelier/internal/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	fmt.Printf("atelier %s (%s)\n", Version, cfg.FullModelName())
	fmt.Println("Type /new for a fresh chat, /exit to quit.")
	fmt.Println()

	userID := uuid.New()
	chatID := uuid.Nil

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nbye")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/exit" || input == "/quit":
			fmt.Println("bye")
			return nil
		case input == "/new":
			chatID = uuid.Nil
			fmt.Println("started a new chat")
			continue
		case strings.HasPrefix(input, "/"):
			fmt.Printf("unknown command %s\n", input)
			continue
		}

		result, err := runTurn(ctx, a, app.TurnRequest{
			ChatID: chatID,
			UserID: userID,
			Input:  input,
		})
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\ninterrupted")
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		chatID = result.Chat.ID

		if result.Turn.Stop == orchestrator.StopStepBound || result.Turn.Stop == orchestrator.StopStepBoundMidCall {
			fmt.Println("\n(stopped at the tool-step limit)")
		}
		fmt.Println()
	}
}

// runTurn executes one turn while a consumer goroutine renders streaming
// events to stdout.
func runTurn(ctx context.Context, a *app.App, req app.TurnRequest) (*app.TurnResult, error) {
	sink := stream.NewSink(a.Config.SinkCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderEvents(sink)
	}()

	result, err := a.RunTurn(ctx, req, sink)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func renderEvents(sink *stream.Sink) {
	for ev := range sink.Events() {
		switch ev.Type {
		case stream.EventDelta:
			fmt.Print(ev.Payload)
		case stream.EventToolStart:
			fmt.Printf("\n[%s] working...\n", ev.Kind)
		case stream.EventToolEnd:
			fmt.Printf("\n[%s] %s\n", ev.Kind, ev.Payload)
		}
	}
}
