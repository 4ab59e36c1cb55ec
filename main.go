package main

import (
	"os"

	"github.com/scan-io-git/watchman/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
