package main

import (
	"errors"
	"os"

	"github.com/postgrestools/pgtools/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrCheckFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
