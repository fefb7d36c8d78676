// Package main provides the entry point for the sitecache daemon.
package main

import (
	"github.com/quietriver/sitecache/internal/cli"
)

func main() {
	cli.Execute()
}
