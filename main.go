package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/dendrascience/h5seek/internal/cmd"
	"github.com/dendrascience/h5seek/version"
)

func main() {
	if err := fang.Execute(context.Background(), cmd.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithCommit(version.GetCommit()),
	); err != nil {
		os.Exit(1)
	}
}
