// MCP server exposing the board instruction pipeline as tools.
//
// The server owns a persistent board (a JSON file under ~/.boardflow by
// default) and offers tools to instruct it in natural language, inspect
// it, and reset it.
//
// Usage:
//
//	go build -o boardflow-mcp ./cmd/boardflow-mcp
//	# Then configure in your MCP client:
//	# "boardflow": {"command": "./boardflow-mcp"}
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/boardflow/boardflow"
)

// InstructArgs is the input schema for the instruct tool.
type InstructArgs struct {
	Instruction string `json:"instruction" jsonschema:"Natural language board instruction, English or Korean"`
}

// ApplyEffectsArgs is the input schema for the apply_effects tool.
type ApplyEffectsArgs struct {
	Effects []boardflow.Effect `json:"effects" jsonschema:"Effects from a previous instruct call to apply to the board"`
}

func boardPath() string {
	if p := os.Getenv("BOARDFLOW_BOARD"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "boardflow-board.json"
	}
	return filepath.Join(home, ".boardflow", "board.json")
}

func buildModel() boardflow.ModelClient {
	cfg := boardflow.DefaultConfig()
	cfg.Model.Endpoint = os.Getenv("BOARDFLOW_MODEL_ENDPOINT")
	cfg.Model.Name = os.Getenv("BOARDFLOW_MODEL_NAME")
	if cfg.Model.Endpoint == "" {
		log.Fatal("BOARDFLOW_MODEL_ENDPOINT must be set")
	}
	model, err := cfg.BuildModel()
	if err != nil {
		log.Fatalf("model setup failed: %v", err)
	}
	return model
}

func main() {
	path := boardPath()
	initial, err := boardflow.LoadBoardFile(path)
	if err != nil {
		log.Fatalf("failed to load board: %v", err)
	}
	store := boardflow.NewBoardStore(initial)
	pipeline := boardflow.NewPipeline(buildModel())

	persist := func() {
		if err := store.SaveFile(path); err != nil {
			log.Printf("failed to persist board: %v", err)
		}
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "boardflow-mcp",
			Version: "1.0.0",
		},
		nil,
	)

	// Tool: instruct - Run an instruction against the board and apply
	// the resulting effects.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "instruct",
		Description: "Run a natural language instruction against the task board and apply the result",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args InstructArgs,
	) (*mcp.CallToolResult, any, error) {
		result := pipeline.Run(ctx, args.Instruction, store.Snapshot())
		if result.Success && len(result.Effects) > 0 {
			if _, err := store.Apply(result.Effects); err != nil {
				return nil, nil, fmt.Errorf("apply effects: %w", err)
			}
			persist()
		}
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(payload)},
			},
		}, nil, nil
	})

	// Tool: apply_effects - Apply previously returned effects verbatim.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_effects",
		Description: "Apply a list of board effects returned by an earlier instruct call",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args ApplyEffectsArgs,
	) (*mcp.CallToolResult, any, error) {
		snap, err := store.Apply(args.Effects)
		if err != nil {
			return nil, nil, fmt.Errorf("apply effects: %w", err)
		}
		persist()
		payload, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(payload)},
			},
		}, nil, nil
	})

	// Tool: board - Return the current board snapshot.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "board",
		Description: "Return the current task board snapshot as JSON",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args struct{},
	) (*mcp.CallToolResult, any, error) {
		payload, err := json.MarshalIndent(store.Snapshot(), "", "  ")
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(payload)},
			},
		}, nil, nil
	})

	// Tool: reset - Replace the board with an empty one.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset",
		Description: "Reset the task board to an empty state",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args struct{},
	) (*mcp.CallToolResult, any, error) {
		store.Replace(nil)
		persist()
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "board reset"},
			},
		}, nil, nil
	})

	// Run the server on stdio transport.
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
