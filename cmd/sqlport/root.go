package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sqlport/sqlport/transpile"
)

var log = logrus.New()

func rootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "sqlport",
		Short:         "Translate T-SQL stored procedures into Go",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(transpileCmd())
	cmd.AddCommand(matchCmd())
	return cmd
}

// fileConfig mirrors the transpile flags in a YAML config file; flags set on
// the command line win.
type fileConfig struct {
	Package      string `yaml:"package"`
	Backend      string `yaml:"backend"`
	Fallback     string `yaml:"fallback-backend"`
	Dialect      string `yaml:"dialect"`
	Receiver     string `yaml:"receiver"`
	ReceiverType string `yaml:"receiver-type"`
	ContextArg   string `yaml:"context-arg"`
	StoreVar     string `yaml:"store-var"`
	NewID        string `yaml:"newid-mode"`
	RPCClientVar string `yaml:"rpc-client-var"`
	ProtoPackage string `yaml:"rpc-proto-package"`
	MockStoreVar string `yaml:"mock-store-var"`
	DDLPolicy    string `yaml:"ddl-policy"`
	Logger       string `yaml:"sp-logger"`
	Annotate     string `yaml:"annotate-level"`
}

func loadFileConfig(path string, cfg *transpile.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.Package != "" {
		cfg.Package = fc.Package
	}
	if fc.Backend != "" {
		cfg.Backend = transpile.Backend(fc.Backend)
	}
	if fc.Fallback != "" {
		cfg.Fallback = transpile.Backend(fc.Fallback)
		cfg.FallbackExplicit = true
	}
	if fc.Dialect != "" {
		cfg.Dialect = fc.Dialect
	}
	if fc.Receiver != "" {
		cfg.Receiver = fc.Receiver
	}
	if fc.ReceiverType != "" {
		cfg.ReceiverType = fc.ReceiverType
	}
	if fc.ContextArg != "" {
		cfg.ContextArg = fc.ContextArg
	}
	if fc.StoreVar != "" {
		cfg.StoreVar = fc.StoreVar
	}
	if fc.NewID != "" {
		cfg.NewID = transpile.NewIDMode(fc.NewID)
	}
	if fc.RPCClientVar != "" {
		cfg.RPCClientVar = fc.RPCClientVar
	}
	if fc.ProtoPackage != "" {
		cfg.ProtoPackage = fc.ProtoPackage
	}
	if fc.MockStoreVar != "" {
		cfg.MockStoreVar = fc.MockStoreVar
	}
	if fc.DDLPolicy != "" {
		cfg.DDL = transpile.DDLPolicy(fc.DDLPolicy)
	}
	if fc.Logger != "" {
		cfg.Logger = transpile.LoggerKind(fc.Logger)
	}
	if fc.Annotate != "" {
		cfg.Annotate = transpile.AnnotateLevel(fc.Annotate)
	}
	return nil
}
