package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"storechat/chat"
	"storechat/config"
	"storechat/mcp"
	"storechat/ollama"
	"storechat/provider"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	config.InitDebugLog(cfg.DataDir())

	registry := provider.NewRegistry(cfg.StoreName, cfg.FailoverEnabled)
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		// The session system prompt reaches every backend through history;
		// no adapter-level persona on top of it.
		p, err := provider.NewProvider(pc, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping provider %s: %v\n", pc.ID, err)
			continue
		}
		registry.Register(p)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	registry.Init(initCtx, cfg.DefaultProvider, cfg.FallbackProvider)
	cancel()

	tools := mcp.NewClient(cfg.Tools, nil)
	if cfg.Tools.ServerURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := tools.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tool server unavailable: %v\n", err)
		}
		cancel()
	}
	defer tools.Disconnect()

	store := chat.NewStore(cfg.Session)
	defer store.Close()

	orch := chat.New(store, registry, tools, cfg)

	if err := runREPL(orch, registry); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runREPL drives an interactive chat loop against a single session.
func runREPL(orch *chat.Orchestrator, registry *provider.Registry) error {
	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("failed to initialize input: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Connected to %s. Type /help for commands.\n", registry.ActiveID())

	var sessionID string
	for {
		line, err := rl.Readline()
		if err != nil {
			// io.EOF on ctrl-d, readline.ErrInterrupt on ctrl-c
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(orch, registry, &sessionID, line)
			if err != nil {
				fmt.Println(err)
			}
			if done {
				return nil
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		result, err := orch.SendTurn(ctx, sessionID, line)
		cancel()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		sessionID = result.SessionID
		fmt.Println(result.Answer)
	}
}

func handleCommand(orch *chat.Orchestrator, registry *provider.Registry, sessionID *string, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println("Commands: /clear, /order [cancel|status], /provider <id>, /models, /quit")

	case "/clear":
		orch.ClearSession(*sessionID)
		*sessionID = ""
		fmt.Println("Session cleared.")

	case "/order":
		return false, handleOrderCommand(orch, sessionID, fields[1:])

	case "/provider":
		if len(fields) < 2 {
			fmt.Printf("Active provider: %s\n", registry.ActiveID())
			return false, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		ok := registry.SwitchProvider(ctx, fields[1])
		cancel()
		if !ok {
			return false, fmt.Errorf("provider %s is not available", fields[1])
		}
		fmt.Printf("Switched to %s.\n", fields[1])

	case "/models":
		lister, ok := registry.Active().(interface {
			ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
		})
		if !ok {
			fmt.Printf("Provider %s does not list models.\n", registry.ActiveID())
			return false, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		models, err := lister.ListModels(ctx)
		cancel()
		if err != nil {
			return false, err
		}
		for _, m := range models {
			fmt.Printf("  %s (%.1f GB)\n", m.Name, float64(m.Size)/1e9)
		}

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func handleOrderCommand(orch *chat.Orchestrator, sessionID *string, args []string) error {
	if len(args) == 0 {
		id, flow := orch.StartOrderFlow(*sessionID)
		*sessionID = id
		fmt.Printf("Order flow started at step %s.\n", flow.CurrentStep)
		return nil
	}

	switch args[0] {
	case "cancel":
		orch.CancelOrderFlow(*sessionID)
		fmt.Println("Order flow cancelled.")
	case "status":
		flow, ok := orch.GetOrderFlowStatus(*sessionID)
		if !ok {
			fmt.Println("No order flow in progress.")
			return nil
		}
		fmt.Printf("Order flow step: %s (active: %v)\n", flow.CurrentStep, flow.IsActive)
	default:
		return fmt.Errorf("unknown order subcommand %s", args[0])
	}
	return nil
}
