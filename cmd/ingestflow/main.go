package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	ingesterrors "github.com/randalmurphal/ingestflow/errors"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(ingesterrors.ExitCode(err))
	}
}
