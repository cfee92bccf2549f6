package main

import (
	"os"

	"github.com/blacktop/imgup/cmd"
	"github.com/blacktop/imgup/internal/logutil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}
