package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/quatton/qtube/apps/qtube/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "qtube crashed: %v\n", r)
			if os.Getenv("QTUBE_DEBUG") != "" {
				debug.PrintStack()
			}
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
