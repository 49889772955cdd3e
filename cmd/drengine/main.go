package main

import "github.com/FairForge/multicloud-dr/cmd/drengine/commands"

func main() {
	commands.Execute()
}
