package main

import (
	"github.com/duelink/duelink/internal/cli"
	"github.com/duelink/duelink/internal/logging"
)

func main() {
	logging.Init()
	cli.Execute()
}
