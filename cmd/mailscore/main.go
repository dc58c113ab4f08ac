package main

import (
	"os"

	"github.com/solatis/mailscore/cmd/mailscore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
