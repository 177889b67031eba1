package main

import "github.com/DrSkyle/fleetledger/cmd/fleetledger/commands"

func main() {
	commands.Execute()
}
