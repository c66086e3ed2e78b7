package main

import (
	"os"

	"github.com/jcortez/winsmith/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
