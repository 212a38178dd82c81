package main

import (
	"os"

	"sift/internal/siftcli"
)

func main() {
	if err := siftcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
