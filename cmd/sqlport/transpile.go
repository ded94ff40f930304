package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/transpile"
)

func transpileCmd() *cobra.Command {
	cfg := transpile.DefaultConfig()
	var (
		configFile string
		outPath    string
		outDir     string
		ddlSink    string
		backend    string
		fallback   string
		newid      string
		ddlPolicy  string
		logger     string
		annotate   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "transpile [file|dir]",
		Short: "Transpile T-SQL batches to Go source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				// Flags bound straight to cfg were already applied; keep their
				// values and re-apply them after the file so explicit flags win.
				explicit := make(map[string]string)
				for _, name := range []string{"package", "dialect", "receiver", "receiver-type", "context-arg",
					"store-var", "rpc-client-var", "rpc-proto-package", "mock-store-var"} {
					if cmd.Flags().Changed(name) {
						explicit[name] = cmd.Flags().Lookup(name).Value.String()
					}
				}
				if err := loadFileConfig(configFile, &cfg); err != nil {
					return fmt.Errorf("config %s: %w", configFile, err)
				}
				for name, v := range explicit {
					if err := cmd.Flags().Set(name, v); err != nil {
						return err
					}
				}
			}
			// String-typed flags land after the config file so explicit
			// flags win.
			if cmd.Flags().Changed("backend") || cfg.Backend == "" {
				cfg.Backend = transpile.Backend(backend)
			}
			if cmd.Flags().Changed("fallback-backend") {
				cfg.Fallback = transpile.Backend(fallback)
				cfg.FallbackExplicit = true
			}
			if cmd.Flags().Changed("newid-mode") {
				cfg.NewID = transpile.NewIDMode(newid)
			}
			if cmd.Flags().Changed("ddl-policy") {
				cfg.DDL = transpile.DDLPolicy(ddlPolicy)
			}
			if cmd.Flags().Changed("sp-logger") {
				cfg.Logger = transpile.LoggerKind(logger)
			}
			if cmd.Flags().Changed("annotate-level") {
				cfg.Annotate = transpile.AnnotateLevel(annotate)
			}

			var collectedDDL []string

			run := func(source, inputName string) error {
				result, err := transpile.Transpile(source, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", inputName, err)
				}
				for _, d := range result.Diagnostics {
					log.Warn(d.String())
				}
				collectedDDL = append(collectedDDL, result.ExtractedDDL...)
				return writeOutput(result.Code, inputName, outPath, outDir, force)
			}

			switch {
			case len(args) == 0:
				source, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				return run(string(source), "<stdin>")
			default:
				info, err := os.Stat(args[0])
				if err != nil {
					return err
				}
				if !info.IsDir() {
					data, err := os.ReadFile(args[0])
					if err != nil {
						return err
					}
					if err := run(string(data), args[0]); err != nil {
						return err
					}
				} else {
					entries, err := os.ReadDir(args[0])
					if err != nil {
						return err
					}
					for _, entry := range entries {
						if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
							continue
						}
						path := filepath.Join(args[0], entry.Name())
						data, err := os.ReadFile(path)
						if err != nil {
							return err
						}
						if err := run(string(data), path); err != nil {
							return err
						}
					}
				}
			}

			if ddlSink != "" && len(collectedDDL) > 0 {
				content := strings.Join(collectedDDL, "\nGO\n\n") + "\n"
				if err := os.WriteFile(ddlSink, []byte(content), 0o644); err != nil {
					return fmt.Errorf("writing DDL sink: %w", err)
				}
				log.Infof("extracted %d DDL statements to %s", len(collectedDDL), ddlSink)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML config file; flags override it")
	f.StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	f.StringVar(&outDir, "out-dir", "", "output directory for directory input")
	f.BoolVar(&force, "force", false, "overwrite existing output files")

	f.StringVar(&cfg.Package, "package", cfg.Package, "Go package name for the output")
	f.StringVar(&backend, "backend", string(cfg.Backend), "DML back-end: sql|rpc|mock|inline")
	f.StringVar(&fallback, "fallback-backend", "", "back-end for temp-table statements under rpc/mock")
	f.StringVar(&cfg.Dialect, "dialect", cfg.Dialect, "SQL dialect: ansi|tsql|postgres|mysql|sqlite")
	f.StringVar(&cfg.Receiver, "receiver", "", "emit procedures as methods on this receiver")
	f.StringVar(&cfg.ReceiverType, "receiver-type", "", "receiver type, e.g. *Repository")
	f.StringVar(&cfg.ContextArg, "context-arg", cfg.ContextArg, "name of the context parameter")
	f.StringVar(&cfg.StoreVar, "store-var", cfg.StoreVar, "database handle the sql back-end calls")
	f.StringVar(&newid, "newid-mode", string(cfg.NewID), "NEWID policy: app|db|rpc|stub|mock")
	f.StringVar(&cfg.IDServiceVar, "id-service", "", "client handle for newid-mode rpc")
	f.StringVar(&cfg.RPCClientVar, "rpc-client-var", cfg.RPCClientVar, "client handle for the rpc back-end")
	f.StringVar(&cfg.ProtoPackage, "rpc-proto-package", "", "namespace prefix for request types")
	f.StringVar(&cfg.MockStoreVar, "mock-store-var", cfg.MockStoreVar, "mock server handle for the mock back-end")
	f.StringVar(&ddlPolicy, "ddl-policy", string(cfg.DDL), "DDL handling: skip-warn|strict|extract")
	f.StringVar(&ddlSink, "extract-ddl", "", "file collecting extracted DDL")
	f.StringVar(&logger, "sp-logger", string(cfg.Logger), "CATCH logger: none|slog|db|file|multi|nop")
	f.StringVar(&cfg.LoggerVar, "sp-logger-var", cfg.LoggerVar, "logger variable name")
	f.StringVar(&cfg.LoggerTable, "sp-logger-table", cfg.LoggerTable, "table for the db logger")
	f.StringVar(&cfg.LoggerFile, "sp-logger-file", "", "path for the file logger")
	f.BoolVar(&cfg.EmitLoggerInit, "sp-logger-init", false, "emit the logger init block")
	f.StringVar(&annotate, "annotate-level", string(cfg.Annotate), "annotation: none|minimal|standard|verbose")

	return cmd
}

func writeOutput(code, inputName, outPath, outDir string, force bool) error {
	switch {
	case outDir != "":
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		base := strings.TrimSuffix(filepath.Base(inputName), ".sql") + ".go"
		path := filepath.Join(outDir, base)
		if !force {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			}
		}
		log.Debugf("%s -> %s", inputName, path)
		return os.WriteFile(path, []byte(code), 0o644)
	case outPath != "":
		if !force {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s exists; use --force to overwrite", outPath)
			}
		}
		return os.WriteFile(outPath, []byte(code), 0o644)
	default:
		_, err := io.WriteString(os.Stdout, code)
		return err
	}
}
