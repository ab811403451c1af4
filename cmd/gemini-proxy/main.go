package main

import (
	"fmt"
	"os"

	"github.com/r9s-ai/gemini-proxy/cmd/gemini-proxy/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
}
