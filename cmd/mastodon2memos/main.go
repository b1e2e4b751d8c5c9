package main

import (
	"os"

	"github.com/ppiankov/mastodon2memos/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
