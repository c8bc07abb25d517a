package main

import (
	"os"

	ragservecmder "github.com/helixbyte/ragserve/cmd/ragserve"
)

func main() {
	cmd := ragservecmder.NewRagserveCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
