package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modeld/internal/config"
	"modeld/internal/httpapi"
	"modeld/internal/manager"
	"modeld/internal/registry"
)

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty entries. An empty input returns nil.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// serveFlags holds every tunable exposed by `modeld serve`. Only --addr and
// --models-dir fall back to environment variables (MODELD_ADDR,
// MODELD_MODELS_DIR); the other flags default to fixed values.
// configPath, when set, is loaded first and flag values explicitly passed on
// the command line still take precedence (cobra reports Changed per-flag).
type serveFlags struct {
	configPath       string
	addr             string
	modelsDir        string
	vramBudgetMB     int
	vramMarginMB     int
	defaultModel     string
	contextSize      int
	gpuOffloadLayers int
	identity         string
	persona          string
	stopSequences    string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modeld",
		Short:         "On-device conversational model runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildModelsCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	f := serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and serve /chat, /models, /status, /tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Optional YAML/JSON/TOML config file; explicit flags still override it")
	fl.StringVar(&f.addr, "addr", envOr("MODELD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	fl.StringVar(&f.modelsDir, "models-dir", envOr("MODELD_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	fl.IntVar(&f.vramBudgetMB, "vram-budget-mb", 0, "VRAM budget in MB for all instances (0=unlimited)")
	fl.IntVar(&f.vramMarginMB, "vram-margin-mb", 0, "Reserved VRAM margin in MB to keep free")
	fl.StringVar(&f.defaultModel, "default-model", "", "Default model id when request omits model")
	fl.IntVar(&f.contextSize, "context-size", 4096, "Context window size in tokens")
	fl.IntVar(&f.gpuOffloadLayers, "gpu-offload-layers", 0, "Number of transformer layers to offload to GPU (0=CPU only)")
	fl.StringVar(&f.identity, "identity", "an on-device assistant", "Identity line folded into the system prompt")
	fl.StringVar(&f.persona, "persona", "", "Additional persona text folded into the system prompt")
	fl.StringVar(&f.stopSequences, "stop-sequences", "", "Comma-separated stop sequences applied when a chat request doesn't specify its own")
	return cmd
}

func buildModelsCmd() *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List *.gguf models discovered under models-dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadDir(modelsDir)
			if err != nil {
				return fmt.Errorf("scan models: %w", err)
			}
			if len(reg) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no models found")
				return nil
			}
			for _, mdl := range reg {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", mdl.ID, mdl.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelsDir, "models-dir", envOr("MODELD_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	return cmd
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyConfigDefaults(cmd, &f, cfg)
	}

	reg, err := registry.LoadDir(f.modelsDir)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:             reg,
		BudgetMB:             f.vramBudgetMB,
		MarginMB:             f.vramMarginMB,
		DefaultModel:         f.defaultModel,
		ContextSize:          f.contextSize,
		GPUOffloadLayers:     f.gpuOffloadLayers,
		Identity:             f.identity,
		Persona:              f.persona,
		DefaultStopSequences: splitCSV(f.stopSequences),
	})

	mux := httpapi.NewMux(mgr)
	srv := &http.Server{Addr: f.addr, Handler: mux}

	go func() {
		log(fmt.Sprintf("modeld listening on %s (models dir: %s)", f.addr, f.modelsDir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(fmt.Sprintf("server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log(fmt.Sprintf("graceful shutdown error: %v", err))
	}
	return nil
}

// applyConfigDefaults fills in any flag the caller did not explicitly set on
// the command line from the loaded config file. Explicit flags always win.
func applyConfigDefaults(cmd *cobra.Command, f *serveFlags, cfg config.Config) {
	fl := cmd.Flags()
	if cfg.Addr != "" && !fl.Changed("addr") {
		f.addr = cfg.Addr
	}
	if cfg.ModelsDir != "" && !fl.Changed("models-dir") {
		f.modelsDir = cfg.ModelsDir
	}
	if cfg.VRAMBudgetMB != 0 && !fl.Changed("vram-budget-mb") {
		f.vramBudgetMB = cfg.VRAMBudgetMB
	}
	if cfg.VRAMMarginMB != 0 && !fl.Changed("vram-margin-mb") {
		f.vramMarginMB = cfg.VRAMMarginMB
	}
	if cfg.DefaultModel != "" && !fl.Changed("default-model") {
		f.defaultModel = cfg.DefaultModel
	}
	if cfg.ContextSize != 0 && !fl.Changed("context-size") {
		f.contextSize = cfg.ContextSize
	}
	if cfg.GPUOffloadLayers != 0 && !fl.Changed("gpu-offload-layers") {
		f.gpuOffloadLayers = cfg.GPUOffloadLayers
	}
	if cfg.Identity != "" && !fl.Changed("identity") {
		f.identity = cfg.Identity
	}
	if cfg.Persona != "" && !fl.Changed("persona") {
		f.persona = cfg.Persona
	}
	if len(cfg.StopSequences) > 0 && !fl.Changed("stop-sequences") {
		f.stopSequences = strings.Join(cfg.StopSequences, ",")
	}
}

func log(msg string)   { fmt.Fprintln(os.Stdout, msg) }
func fatal(msg string) { fmt.Fprintln(os.Stderr, msg); os.Exit(1) }

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fatal(err.Error())
	}
}
