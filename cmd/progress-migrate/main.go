// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/marcusrbrown/vbs-sub004/internal/catalog"
	"github.com/marcusrbrown/vbs-sub004/internal/config"
	"github.com/marcusrbrown/vbs-sub004/internal/migration"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"github.com/marcusrbrown/vbs-sub004/internal/redisclient"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var cmd string
	var configPath string
	var idsRaw string
	var txID string
	var inFile string
	var outFile string
	var showVersion bool

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&cmd, "cmd", "", "forward|rollback|abort|status|export|import")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&idsRaw, "ids", "", "comma-separated progress ids (forward|rollback|export)")
	fs.StringVar(&txID, "tx", "", "transaction id (abort)")
	fs.StringVar(&inFile, "in", "", "input file path (import)")
	fs.StringVar(&outFile, "out", "", "output file path (export); stdout if empty")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := obs.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store := buildStore(cfg, logger)
	cat := catalog.NewMemory(nil)
	engine := migration.New(store, cat, nil, logger)
	ctx := context.Background()

	switch cmd {
	case "forward":
		runConvert(ctx, engine, splitIDs(idsRaw), "season-level", "episode-level", migration.DirectionForward)
	case "rollback":
		runConvert(ctx, engine, splitIDs(idsRaw), "episode-level", "season-level", migration.DirectionRollback)
	case "abort":
		if txID == "" {
			fatal("abort requires -tx")
		}
		result, err := engine.RollbackTx(ctx, txID)
		if err != nil {
			fatal(fmt.Sprintf("abort failed: %v", err))
		}
		printJSON(result)
	case "status":
		printJSON(engine.LoadState(ctx))
	case "export":
		exportProgress(engine, splitIDs(idsRaw), outFile)
	case "import":
		importProgress(inFile)
	default:
		fatal("unknown -cmd: " + cmd)
	}
}

func runConvert(ctx context.Context, engine *migration.Engine, ids []string, fromVersion, toVersion string, dir migration.Direction) {
	var result migration.Result
	if dir == migration.DirectionForward {
		result = engine.Forward(ids)
	} else {
		result = engine.Rollback(ids)
	}

	tx, err := engine.BeginTransaction(ctx, ids, fromVersion, toVersion, dir)
	if err != nil {
		fatal(fmt.Sprintf("begin transaction failed: %v", err))
	}
	if err := engine.Commit(ctx, tx, result); err != nil {
		fatal(fmt.Sprintf("commit failed: %v", err))
	}
	printJSON(struct {
		Transaction migration.Transaction `json:"transaction"`
		Result      migration.Result      `json:"result"`
	}{tx, result})
}

func exportProgress(engine *migration.Engine, ids []string, outFile string) {
	f := engine.ExportProgress(ids)
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		fatal(fmt.Sprintf("export encode failed: %v", err))
	}
	if outFile == "" {
		fmt.Println(string(raw))
		return
	}
	if err := os.WriteFile(outFile, raw, 0o644); err != nil {
		fatal(fmt.Sprintf("export write failed: %v", err))
	}
}

func importProgress(inFile string) {
	if inFile == "" {
		fatal("import requires -in")
	}
	raw, err := os.ReadFile(inFile)
	if err != nil {
		fatal(fmt.Sprintf("import read failed: %v", err))
	}
	f, err := migration.ImportProgress(raw)
	if err != nil {
		fatal(fmt.Sprintf("import rejected: %v", err))
	}
	printJSON(f)
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func printJSON(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(fmt.Sprintf("encode failed: %v", err))
	}
	fmt.Println(string(raw))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildStore(cfg *config.Config, logger *zap.Logger) persistence.Store {
	switch cfg.Cache.Backend {
	case "redis":
		return persistence.NewRedisStore(redisclient.New(cfg), "enrichd:")
	case "file":
		store, err := persistence.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			logger.Fatal("failed to open file store", obs.Err(err))
		}
		return store
	default:
		return persistence.NewMemoryStore()
	}
}
