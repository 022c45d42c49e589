// boardflow is the instruction pipeline daemon and demo CLI.
//
// Usage:
//
//	boardflow serve --config boardflow.yaml
//	boardflow demo "버그 고치기 태스크 만들어줘"
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boardflow/boardflow"
)

func main() {
	root := &cobra.Command{
		Use:   "boardflow",
		Short: "Natural language task board instruction pipeline",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), demoCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := boardflow.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.BuildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			model, err := cfg.BuildModel()
			if err != nil {
				return err
			}

			pipeline := boardflow.NewPipeline(model,
				boardflow.WithLogger(logger.Named("pipeline")))
			orchestrator := boardflow.NewOrchestrator(model,
				boardflow.WithOrchestratorLogger(logger.Named("orchestrator")))
			server := boardflow.NewServer(cfg, pipeline, orchestrator, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting", zap.String("listen", cfg.Server.Listen))
			return server.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	return cmd
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo [instruction]",
		Short: "Run one instruction against a sample board with a scripted model",
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := "버그 수정 태스크를 완료로 바꿔줘"
			if len(args) > 0 {
				instruction = strings.Join(args, " ")
			}

			snap := sampleBoard()
			model := boardflow.NewScriptedModel(
				demoSkeleton(instruction),
				`{"message": "Moved the bug fix task to done."}`,
			)
			pipeline := boardflow.NewPipeline(model)

			fmt.Printf("Instruction: %s\n\n", instruction)
			fmt.Println("Events:")
			fmt.Println("─────────")

			var result *boardflow.Result
			for ev := range pipeline.Stream(cmd.Context(), instruction, snap) {
				switch ev.Type {
				case boardflow.EventDone, boardflow.EventError:
					result, _ = ev.Data.(*boardflow.Result)
				default:
					fmt.Printf("  %s\n", ev.Type)
				}
			}
			if result == nil {
				return fmt.Errorf("stream ended without a terminal event")
			}

			fmt.Println("─────────")
			fmt.Printf("Success: %v\n", result.Success)
			fmt.Printf("Message: %s\n", result.Message)
			if len(result.Effects) > 0 {
				payload, err := json.MarshalIndent(result.Effects, "", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("Effects:\n%s\n", payload)

				next, err := boardflow.ApplyEffects(snap, result.Effects)
				if err != nil {
					return err
				}
				fmt.Println("\nBoard after:")
				for _, t := range next.ActiveTasks() {
					fmt.Printf("  [%s] %s\n", t.Status, t.Title)
				}
			}
			return nil
		},
	}
}

// sampleBoard is the fixed demo board.
func sampleBoard() *boardflow.Snapshot {
	snap := boardflow.NewSnapshot()
	snap.Data.Tasks = []boardflow.Task{
		{ID: "t-1", Title: "버그 수정", Status: boardflow.TaskStatusInProgress, Priority: boardflow.TaskPriorityHigh},
		{ID: "t-2", Title: "Write release notes", Status: boardflow.TaskStatusTodo, Priority: boardflow.TaskPriorityMedium},
		{ID: "t-3", Title: "Review API design", Status: boardflow.TaskStatusTodo, Priority: boardflow.TaskPriorityLow},
	}
	return snap
}

// demoSkeleton fakes the compiler call for the demo, so it runs without
// a live model. Unrecognized instructions fall back to a query.
func demoSkeleton(instruction string) string {
	lower := strings.ToLower(instruction)
	switch {
	case strings.Contains(lower, "버그") || strings.Contains(lower, "bug"):
		return `{"kind": "change_status", "confidence": 0.95,
			"targets": [{"text": "버그 수정"}], "status": "done"}`
	case strings.Contains(lower, "만들") || strings.Contains(lower, "add") || strings.Contains(lower, "create"):
		return `{"kind": "create_task", "confidence": 0.9,
			"tasks": [{"title": "` + strings.ReplaceAll(instruction, `"`, ``) + `"}]}`
	default:
		return `{"kind": "query_tasks", "confidence": 0.6, "filter": {}}`
	}
}
