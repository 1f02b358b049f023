package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/postgrestools/pgtools/config"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/text"
	"github.com/postgrestools/pgtools/workspace"
)

// ErrCheckFailed reports that the check found error-severity
// diagnostics; main turns it into exit code 1.
var ErrCheckFailed = errors.New("check failed")

var (
	checkFormat string

	checkCmd = &cobra.Command{
		Use:   "check [paths...]",
		Short: "Analyze SQL files and print diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), args)
		},
	}
)

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text or json")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	w := workspace.New(cfg, workspace.WithLogger(logger))
	if cfg.HasDB() {
		if err := w.RefreshSchemaCache(ctx); err != nil {
			logger.WithError(err).Warn("continuing without schema information")
		}
	}

	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := collectFiles(args, cfg.MaxFileSize(), ignoreGlobs(cfg))
	if err != nil {
		return err
	}

	hasError := false
	var encoded []diag.Encoded

	report := func(file, content string, diags []diag.Diagnostic) {
		ix := text.NewLineIndex(content)
		for _, d := range diags {
			if d.Severity == diag.Error {
				hasError = true
			}
			switch checkFormat {
			case "json":
				encoded = append(encoded, diag.Encode(d, ix))
			default:
				pos := ix.Position(d.Primary.Start)
				fmt.Printf("%s:%d:%d %s %s %s\n", file, pos.Line, pos.Col, d.Severity, d.Category, d.Message)
			}
		}
	}

	report(configFileLabel(), "", w.ConfigDiagnostics())

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			// one unreadable path never blocks the others
			logger.WithError(err).WithField("file", file).Error("skipping unreadable file")
			hasError = true
			continue
		}
		id := workspace.DocumentID(file)
		w.OpenDocument(id, string(content), 1)
		diags, err := w.PullDiagnostics(id)
		if err != nil {
			return err
		}
		report(file, string(content), diags)
		w.CloseDocument(id)
	}

	if checkFormat == "json" {
		out, err := json.MarshalIndent(encoded, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}

	if hasError {
		return ErrCheckFailed
	}
	return nil
}

func configFileLabel() string {
	if configPath != "" {
		return configPath
	}
	return "postgrestools.jsonc"
}

func ignoreGlobs(cfg *config.Config) []string {
	if cfg == nil || cfg.Files == nil {
		return nil
	}
	return cfg.Files.Ignore
}

// collectFiles expands the given paths into the .sql files to analyze.
// Directories are walked recursively; oversized and ignored files are
// skipped.
func collectFiles(paths []string, maxSize uint64, ignore []string) ([]string, error) {
	var files []string
	add := func(path string, size int64) {
		if uint64(size) > maxSize {
			return
		}
		for _, glob := range ignore {
			if ok, _ := filepath.Match(glob, filepath.ToSlash(path)); ok {
				return
			}
		}
		files = append(files, path)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		if !info.IsDir() {
			add(p, info.Size())
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".sql") {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			add(path, fi.Size())
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walking %s", p)
		}
	}
	return files, nil
}
