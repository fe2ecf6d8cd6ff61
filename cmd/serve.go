/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bennypowers/millwright/internal/config"
	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/dispatcher"
	"github.com/bennypowers/millwright/internal/executor"
	"github.com/bennypowers/millwright/internal/importgraph"
	"github.com/bennypowers/millwright/internal/langplugin/golang"
	"github.com/bennypowers/millwright/internal/langplugin/markdown"
	"github.com/bennypowers/millwright/internal/langplugin/rust"
	"github.com/bennypowers/millwright/internal/langplugin/typescript"
	"github.com/bennypowers/millwright/internal/logging"
	"github.com/bennypowers/millwright/internal/lsppool"
	"github.com/bennypowers/millwright/internal/manifestmgr"
	"github.com/bennypowers/millwright/internal/opqueue"
	"github.com/bennypowers/millwright/internal/planbuilder"
	"github.com/bennypowers/millwright/internal/planmodel"
	"github.com/bennypowers/millwright/internal/plugin"
	"github.com/bennypowers/millwright/internal/version"
)

// serveCmd starts the refactoring server: it loads the recognized config
// tree, wires the Plan Builder's handlers to the Dispatcher's six tools,
// and serves them over MCP stdio. Modeled on cmd/mcp.go's RunE shape
// (redirect pterm to stderr, build a server, call Run(ctx, transport))
// generalized from a custom-elements MCP server to this one's dispatcher-
// backed tool set.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the refactoring server over MCP stdio",
	Long: `serve loads millwright's configuration, starts the language server
pool, and exposes rename_all/relocate/prune/reorder/refactor/workspace as
MCP tools over stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.SetDefaultOutput(os.Stderr)
		logging.GetLogger().SetMode(logging.ModeServer)

		projectDir := viper.GetString("projectDir")
		cfg, err := config.Load(projectDir, viper.GetString("configFile"), viper.GetString("profile"))
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		env := newServerEnv(cfg, projectDir)

		d := dispatcher.New()
		if err := env.registerTools(d); err != nil {
			return fmt.Errorf("registering tools: %w", err)
		}

		timeout := time.Duration(cfg.Server.TimeoutMs) * time.Millisecond
		server, err := d.ToMCPServer("millwright", version.GetVersion(), timeout)
		if err != nil {
			return fmt.Errorf("building MCP server: %w", err)
		}

		logging.GetLogger().Named("serve").Info("millwright %s serving %d tools over stdio", version.GetVersion(), len(d.Names()))
		return server.Run(cmd.Context(), &gosdk.StdioTransport{})
	},
}

// serverEnv holds every long-lived component the tool handlers share: the
// plugin registry, LSP pool, import scanner, operation queue, and the
// Plan Builder handlers built over them. One instance per process,
// mirroring how the teacher's workspace.Context is built once in
// PersistentPreRunE and threaded through every subcommand.
type serverEnv struct {
	registry    *plugin.Registry
	pool        *lsppool.Pool
	scanner     *importgraph.Scanner
	queue       *opqueue.Queue
	manifest    *manifestmgr.Manager
	reorder     *planbuilder.ReorderHandler
	prune       *planbuilder.PrunePlanner
	move        *planbuilder.MovePlanner
	executorOpt executor.Options
}

func newServerEnv(cfg *config.Config, projectDir string) *serverEnv {
	registry := plugin.NewRegistry(cfg.PluginSelection.ErrorOnAmbiguity)
	registry.Register(golang.New())
	registry.Register(typescript.New())
	registry.Register(markdown.New())
	registry.Register(rust.New())
	for ext, names := range cfg.PluginSelection.Priorities {
		registry.SetPriority(ext, names)
	}

	pool := lsppool.New(cfg.LSP)
	scanner := importgraph.NewScanner(registry, projectDir)
	queue := opqueue.New()

	return &serverEnv{
		registry:    registry,
		pool:        pool,
		scanner:     scanner,
		queue:       queue,
		manifest:    manifestmgr.New(registry),
		reorder:     planbuilder.NewReorderHandler(pool, registry),
		prune:       planbuilder.NewPrunePlanner(registry, scanner, projectDir),
		move:        planbuilder.NewMovePlanner(registry, scanner, projectDir),
		executorOpt: executor.DefaultOptions(),
	}
}

// maybeApply returns plan unexecuted when dryRun is set (spec §6's
// dry-run invariant: the workspace must be bit-identical before and
// after), otherwise runs it through the executor and returns its result.
func (s *serverEnv) maybeApply(ctx context.Context, plan planmodel.Plan, dryRun bool) (any, error) {
	if dryRun {
		return plan, nil
	}
	return executor.Apply(ctx, s.queue, plan, s.executorOpt)
}

type targetArg struct {
	Kind      string  `json:"kind"`
	Path      string  `json:"path"`
	Line      *uint32 `json:"line,omitempty"`
	Character *uint32 `json:"character,omitempty"`
}

func (t targetArg) position() protocol.Position {
	var line, character uint32
	if t.Line != nil {
		line = *t.Line
	}
	if t.Character != nil {
		character = *t.Character
	}
	return protocol.Position{Line: line, Character: character}
}

const renameAllSchema = `{
  "type": "object",
  "required": ["target", "newName"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["kind", "path"],
      "properties": {
        "kind": {"type": "string", "enum": ["symbol", "file", "directory"]},
        "path": {"type": "string"},
        "line": {"type": "integer", "minimum": 0},
        "character": {"type": "integer", "minimum": 0}
      }
    },
    "newName": {"type": "string", "minLength": 1},
    "options": {
      "type": "object",
      "properties": {"dryRun": {"type": "boolean"}}
    }
  }
}`

type renameAllArgs struct {
	Target  targetArg `json:"target"`
	NewName string    `json:"newName"`
	Options struct {
		DryRun bool `json:"dryRun"`
	} `json:"options"`
}

func (s *serverEnv) handleRenameAll(ctx context.Context, raw json.RawMessage) (any, error) {
	var args renameAllArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding rename_all arguments")
	}

	var plan planmodel.Plan
	var err error
	switch args.Target.Kind {
	case "symbol":
		plan, err = s.reorder.PlanRename(ctx, planbuilder.RenameTarget{
			FilePath: args.Target.Path,
			Position: args.Target.position(),
			NewName:  args.NewName,
		})
	case "file":
		plan, err = s.move.PlanRenameFile(ctx, args.Target.Path, args.NewName, true)
	case "directory":
		plan, err = s.move.PlanRenameDirectory(ctx, args.Target.Path, args.NewName)
	default:
		return nil, corexerr.New(corexerr.InvalidRequest,
			"unsupported rename_all target kind %q, must be one of: symbol, file, directory", args.Target.Kind)
	}
	if err != nil {
		return nil, err
	}
	return s.maybeApply(ctx, plan, args.Options.DryRun)
}

const relocateSchema = `{
  "type": "object",
  "required": ["target", "destination"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["kind", "path"],
      "properties": {
        "kind": {"type": "string", "enum": ["file", "directory"]},
        "path": {"type": "string"}
      }
    },
    "destination": {"type": "string"},
    "options": {
      "type": "object",
      "properties": {
        "dryRun": {"type": "boolean"},
        "updateImports": {"type": "boolean"}
      }
    }
  }
}`

type relocateArgs struct {
	Target struct {
		Kind string `json:"kind"`
		Path string `json:"path"`
	} `json:"target"`
	Destination string `json:"destination"`
	Options     struct {
		DryRun        bool `json:"dryRun"`
		UpdateImports bool `json:"updateImports"`
	} `json:"options"`
}

func (s *serverEnv) handleRelocate(ctx context.Context, raw json.RawMessage) (any, error) {
	var args relocateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding relocate arguments")
	}
	plan, err := s.move.PlanMove(ctx, planbuilder.RelocateTarget{
		Kind:          args.Target.Kind,
		Path:          args.Target.Path,
		Destination:   args.Destination,
		UpdateImports: args.Options.UpdateImports,
	})
	if err != nil {
		return nil, err
	}
	return s.maybeApply(ctx, plan, args.Options.DryRun)
}

const pruneSchema = `{
  "type": "object",
  "required": ["target"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["kind", "path"],
      "properties": {
        "kind": {"type": "string", "enum": ["symbol", "file", "directory"]},
        "path": {"type": "string"},
        "selector": {
          "type": "object",
          "required": ["line", "character"],
          "properties": {
            "line": {"type": "integer", "minimum": 0},
            "character": {"type": "integer", "minimum": 0},
            "symbolName": {"type": "string"}
          }
        }
      }
    },
    "options": {
      "type": "object",
      "properties": {
        "dryRun": {"type": "boolean"},
        "force": {"type": "boolean"},
        "cleanupImports": {"type": "boolean"}
      }
    }
  }
}`

type pruneArgs struct {
	Target struct {
		Kind     string `json:"kind"`
		Path     string `json:"path"`
		Selector *struct {
			Line       uint32 `json:"line"`
			Character  uint32 `json:"character"`
			SymbolName string `json:"symbolName"`
		} `json:"selector"`
	} `json:"target"`
	Options struct {
		DryRun         bool  `json:"dryRun"`
		Force          bool  `json:"force"`
		CleanupImports *bool `json:"cleanupImports"`
	} `json:"options"`
}

func (s *serverEnv) handlePrune(ctx context.Context, raw json.RawMessage) (any, error) {
	var args pruneArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding prune arguments")
	}

	target := planbuilder.PruneTarget{Kind: args.Target.Kind, Path: args.Target.Path}
	if args.Target.Selector != nil {
		target.Selector = &planbuilder.PruneSelector{
			Line:       args.Target.Selector.Line,
			Character:  args.Target.Selector.Character,
			SymbolName: args.Target.Selector.SymbolName,
		}
	}
	opts := planbuilder.PruneOptions{
		DryRun:         args.Options.DryRun,
		Force:          args.Options.Force,
		CleanupImports: args.Options.CleanupImports,
	}

	var plan planmodel.Plan
	var err error
	switch args.Target.Kind {
	case "symbol":
		plan, err = s.prune.PlanSymbolDelete(ctx, target)
	case "file":
		plan, err = s.prune.PlanFileDelete(ctx, target, opts)
	case "directory":
		plan, err = s.prune.PlanDirectoryDelete(ctx, target, opts)
	default:
		return nil, corexerr.New(corexerr.InvalidRequest,
			"unsupported prune target kind %q, must be one of: symbol, file, directory", args.Target.Kind)
	}
	if err != nil {
		return nil, err
	}
	return s.maybeApply(ctx, plan, args.Options.DryRun)
}

const reorderSchema = `{
  "type": "object",
  "required": ["target"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["kind", "filePath", "position"],
      "properties": {
        "kind": {"type": "string", "enum": ["parameters", "fields", "imports", "statements"]},
        "filePath": {"type": "string"},
        "position": {
          "type": "object",
          "required": ["line", "character"],
          "properties": {
            "line": {"type": "integer", "minimum": 0},
            "character": {"type": "integer", "minimum": 0}
          }
        }
      }
    },
    "options": {
      "type": "object",
      "properties": {"dryRun": {"type": "boolean"}}
    }
  }
}`

type reorderArgs struct {
	Target struct {
		Kind     string `json:"kind"`
		FilePath string `json:"filePath"`
		Position struct {
			Line      uint32 `json:"line"`
			Character uint32 `json:"character"`
		} `json:"position"`
	} `json:"target"`
	Options struct {
		DryRun bool `json:"dryRun"`
	} `json:"options"`
}

func (s *serverEnv) handleReorder(ctx context.Context, raw json.RawMessage) (any, error) {
	var args reorderArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding reorder arguments")
	}
	plan, err := s.reorder.PlanReorder(ctx, planbuilder.ReorderTarget{
		Kind:     args.Target.Kind,
		FilePath: args.Target.FilePath,
		Position: protocol.Position{Line: args.Target.Position.Line, Character: args.Target.Position.Character},
	})
	if err != nil {
		return nil, err
	}
	return s.maybeApply(ctx, plan, args.Options.DryRun)
}

const refactorSchema = `{
  "type": "object",
  "required": ["action", "params"],
  "properties": {
    "action": {"type": "string", "enum": ["extract", "inline"]},
    "params": {
      "type": "object",
      "required": ["filePath", "range"],
      "properties": {
        "filePath": {"type": "string"},
        "range": {
          "type": "object",
          "required": ["start", "end"],
          "properties": {
            "start": {
              "type": "object",
              "required": ["line", "character"],
              "properties": {
                "line": {"type": "integer", "minimum": 0},
                "character": {"type": "integer", "minimum": 0}
              }
            },
            "end": {
              "type": "object",
              "required": ["line", "character"],
              "properties": {
                "line": {"type": "integer", "minimum": 0},
                "character": {"type": "integer", "minimum": 0}
              }
            }
          }
        },
        "name": {"type": "string"}
      }
    },
    "options": {
      "type": "object",
      "properties": {"dryRun": {"type": "boolean"}}
    }
  }
}`

type refactorArgs struct {
	Action string `json:"action"`
	Params struct {
		FilePath string `json:"filePath"`
		Range    struct {
			Start struct {
				Line      uint32 `json:"line"`
				Character uint32 `json:"character"`
			} `json:"start"`
			End struct {
				Line      uint32 `json:"line"`
				Character uint32 `json:"character"`
			} `json:"end"`
		} `json:"range"`
		Name string `json:"name"`
	} `json:"params"`
	Options struct {
		DryRun bool `json:"dryRun"`
	} `json:"options"`
}

func (s *serverEnv) handleRefactor(ctx context.Context, raw json.RawMessage) (any, error) {
	var args refactorArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding refactor arguments")
	}
	rng := protocol.Range{
		Start: protocol.Position{Line: args.Params.Range.Start.Line, Character: args.Params.Range.Start.Character},
		End:   protocol.Position{Line: args.Params.Range.End.Line, Character: args.Params.Range.End.Character},
	}
	plan, err := s.reorder.PlanRefactor(ctx, planbuilder.RefactorAction(args.Action), planbuilder.RefactorTarget{
		FilePath: args.Params.FilePath,
		Range:    rng,
		Name:     args.Params.Name,
	})
	if err != nil {
		return nil, err
	}
	return s.maybeApply(ctx, plan, args.Options.DryRun)
}

const workspaceSchema = `{
  "type": "object",
  "required": ["action", "params"],
  "properties": {
    "action": {"type": "string", "enum": ["extract_dependencies", "update_members", "apply_edit"]},
    "params": {"type": "object"},
    "options": {
      "type": "object",
      "properties": {"dryRun": {"type": "boolean"}}
    }
  }
}`

type workspaceArgs struct {
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params"`
	Options struct {
		DryRun bool `json:"dryRun"`
	} `json:"options"`
}

type extractDependenciesParams struct {
	SourcePath       string   `json:"sourcePath"`
	TargetPath       string   `json:"targetPath"`
	PreserveVersions bool     `json:"preserveVersions"`
	PreserveFeatures bool     `json:"preserveFeatures"`
	Names            []string `json:"names"`
}

type updateMembersParams struct {
	ManifestPath string `json:"manifestPath"`
	Add          string `json:"add"`
	Remove       string `json:"remove"`
}

// applyEditParams resubmits a previously returned plan (e.g. from a
// rename_all/relocate/prune/reorder/refactor call made with
// options.dryRun=true) for execution, the generic counterpart to those
// tools' own inline apply step.
type applyEditParams struct {
	Plan planmodel.Plan `json:"plan"`
}

// handleWorkspace dispatches the `workspace` tool's three actions (spec
// §6). extract_dependencies/update_members go straight to
// manifestmgr.Manager, which already reads/writes the manifest files
// itself; apply_edit is the generic apply path for a plan built by
// another tool's dry run.
func (s *serverEnv) handleWorkspace(ctx context.Context, raw json.RawMessage) (any, error) {
	var args workspaceArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding workspace arguments")
	}

	switch args.Action {
	case "extract_dependencies":
		var p extractDependenciesParams
		if err := json.Unmarshal(args.Params, &p); err != nil {
			return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding extract_dependencies params")
		}
		return s.manifest.ExtractDependencies(p.SourcePath, p.TargetPath, plugin.ExtractOptions{
			PreserveVersions: p.PreserveVersions,
			PreserveFeatures: p.PreserveFeatures,
			Names:            p.Names,
		})
	case "update_members":
		var p updateMembersParams
		if err := json.Unmarshal(args.Params, &p); err != nil {
			return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding update_members params")
		}
		if p.Add != "" {
			return s.manifest.AddWorkspaceMember(p.ManifestPath, p.Add)
		}
		if p.Remove != "" {
			return s.manifest.RemoveWorkspaceMember(p.ManifestPath, p.Remove)
		}
		return nil, corexerr.New(corexerr.InvalidRequest, "update_members requires params.add or params.remove")
	case "apply_edit":
		var p applyEditParams
		if err := json.Unmarshal(args.Params, &p); err != nil {
			return nil, corexerr.Wrap(corexerr.InvalidRequest, err, "decoding apply_edit params")
		}
		return s.maybeApply(ctx, p.Plan, args.Options.DryRun)
	default:
		return nil, corexerr.New(corexerr.InvalidRequest,
			"unsupported workspace action %q, must be one of: extract_dependencies, update_members, apply_edit", args.Action)
	}
}

func (s *serverEnv) registerTools(d *dispatcher.Dispatcher) error {
	tools := []struct {
		name, description, schema string
		handler                   dispatcher.Handler
	}{
		{"rename_all", "Rename a symbol, file, or directory across the workspace", renameAllSchema, s.handleRenameAll},
		{"relocate", "Move a file or directory, optionally rewriting dependent imports", relocateSchema, s.handleRelocate},
		{"prune", "Delete a symbol, file, or directory", pruneSchema, s.handlePrune},
		{"reorder", "Reorder parameters, fields, imports, or statements", reorderSchema, s.handleReorder},
		{"refactor", "Extract or inline a declaration", refactorSchema, s.handleRefactor},
		{"workspace", "Manage workspace manifests: extract_dependencies, update_members, apply_edit", workspaceSchema, s.handleWorkspace},
	}
	for _, t := range tools {
		if err := d.Register(t.name, t.description, json.RawMessage(t.schema), t.handler); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("profile", "", "Named configuration overlay to apply on top of the base config")
	if err := viper.BindPFlag("profile", serveCmd.Flags().Lookup("profile")); err != nil {
		panic(fmt.Sprintf("failed to bind flag profile: %v", err))
	}
}
