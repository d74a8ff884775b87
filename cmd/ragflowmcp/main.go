package main

import (
	"os"

	"github.com/glide-the/RAGFlowMCP/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
