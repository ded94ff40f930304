package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/match"
	"github.com/sqlport/sqlport/protocat"
)

func matchCmd() *cobra.Command {
	var protoDir, sqlPath string
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Map proto service methods onto stored procedures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if protoDir == "" || sqlPath == "" {
				return fmt.Errorf("both --proto and --sql are required")
			}

			catalog, err := protocat.ParseDir(protoDir)
			if err != nil {
				return err
			}

			sqlText, err := readSQL(sqlPath)
			if err != nil {
				return err
			}
			procs := match.ExtractProcedures(sqlText)
			log.Debugf("parsed %d services, %d procedures", len(catalog.Services), len(procs))

			m := match.New(catalog, procs)
			mappings := m.MapAll()
			stats := m.StatsFor(mappings)

			keys := make([]string, 0, len(mappings))
			for k := range mappings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := cmd.OutOrStdout()
			for _, k := range keys {
				mp := mappings[k]
				if mp.Confidence < minConfidence {
					continue
				}
				fmt.Fprintf(w, "%-48s -> %-32s %.2f\n", k, mp.Procedure.Name, mp.Confidence)
				for _, b := range mp.RequestBindings {
					fmt.Fprintf(w, "    req  %s -> @%s\n", b.ProtoField, b.SQLName)
				}
				for _, b := range mp.ResponseBindings {
					fmt.Fprintf(w, "    resp %s <- %s\n", b.ProtoField, b.SQLName)
				}
				for _, n := range mp.Notes {
					fmt.Fprintf(w, "    note %s\n", n)
				}
			}

			fmt.Fprintf(w, "\n%d methods, %d mapped (%d high, %d medium, %d low), %d unmapped\n",
				stats.Methods, stats.Mapped, stats.High, stats.Medium, stats.Low, stats.Unmapped)
			return nil
		},
	}

	cmd.Flags().StringVar(&protoDir, "proto", "", "directory of .proto files")
	cmd.Flags().StringVar(&sqlPath, "sql", "", "SQL file or directory of procedures")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "hide mappings below this confidence")
	return cmd
}

func readSQL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	var parts []string
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return "", err
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}
