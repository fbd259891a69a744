package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/portsel/internal/projectconfig"
	"github.com/spboyer/portsel/internal/utils"
	"github.com/spboyer/portsel/internal/validation"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [config-file]",
		Short: "Validate a .portsel.yaml configuration",
		Long: `Validate a project configuration file.

Checks the file against the configuration schema, compiles every eligibility
rule pattern and, when input.descriptors is set, parses the descriptor file.

With no arguments, checks the nearest .portsel.yaml walking up from the
current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
	return cmd
}

// checkResult is one line of check output.
type checkResult struct {
	name   string
	issues []string
}

func runCheck(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		found, err := projectconfig.Find(wd)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(w, "No %s found; built-in defaults apply.\n", projectconfig.FileName) //nolint:errcheck
			return nil
		}
		if err != nil {
			return err
		}
		path = found
	}

	results, err := checkConfig(path)
	if err != nil {
		return err
	}

	printCheckResults(w, path, results)

	problems := 0
	for _, r := range results {
		problems += len(r.issues)
	}
	if problems > 0 {
		return fmt.Errorf("%s has %d problem(s)", path, problems)
	}
	return nil
}

func checkConfig(path string) ([]checkResult, error) {
	schemaIssues, err := validation.ValidateConfigFile(path)
	if err != nil {
		return nil, err
	}
	results := []checkResult{{name: "Schema", issues: schemaIssues}}
	if len(schemaIssues) > 0 {
		return results, nil
	}

	cfg, err := projectconfig.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Input.Descriptors != "" {
		descPath := utils.ResolvePath(cfg.Input.Descriptors, filepath.Dir(path))
		var issues []string
		data, err := os.ReadFile(descPath)
		if err != nil {
			issues = []string{fmt.Sprintf("reading %s: %v", cfg.Input.Descriptors, err)}
		} else {
			issues = validation.ValidateDescriptorBytes(data)
		}
		results = append(results, checkResult{name: "Descriptors", issues: issues})
	}
	return results, nil
}

func printCheckResults(w io.Writer, path string, results []checkResult) {
	fmt.Fprintf(w, "Checking %s\n\n", path) //nolint:errcheck

	width := 0
	for _, r := range results {
		if sw := runewidth.StringWidth(r.name); sw > width {
			width = sw
		}
	}

	for _, r := range results {
		status := "✅ ok"
		if len(r.issues) > 0 {
			status = fmt.Sprintf("❌ %d issue(s)", len(r.issues))
		}
		fmt.Fprintf(w, "  %s  %s\n", padRight(r.name, width), status) //nolint:errcheck
		for _, issue := range r.issues {
			fmt.Fprintf(w, "    - %s\n", issue) //nolint:errcheck
		}
	}
}

func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
