package main

import (
	"github.com/netxfw/netxmap/cmd/netxmap/commands"
)

func main() {
	commands.Execute()
}
