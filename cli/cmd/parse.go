package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/repr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/text"
)

var (
	parseCmd = &cobra.Command{
		Use:   "parse file.sql",
		Short: "Dump the statement split and parse outcome of one file, for debugging",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = cmd.Help()
				return errors.New("need to specify one file")
			}
			return runParse(args[0])
		},
	}
)

func init() {
	rootCmd.AddCommand(parseCmd)
}

type parseDump struct {
	Range       text.Range
	Fingerprint string
	Kind        string
	ParseError  string
	Edges       []pgparse.Edge
}

func runParse(file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	input := string(content)

	for i, st := range sqlsplit.Split(input) {
		dump := parseDump{
			Range:       st.Range,
			Fingerprint: st.Fingerprint.String(),
		}
		parsed, perr := pgparse.Parse(st.Text(input), st.Range)
		if perr != nil {
			dump.ParseError = perr.Error()
		} else {
			dump.Kind = pgparse.KindOf(parsed.Node())
			dump.Edges = pgparse.Edges(parsed.Raw)
		}
		fmt.Printf("statement %d:\n", i)
		repr.Println(dump, repr.Indent("  "))
	}
	return nil
}
