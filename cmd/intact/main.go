package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/robwhited/intact/internal/control"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		if errors.Is(err, control.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
