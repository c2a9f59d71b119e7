package main

import "github.com/xpanvictor/goocast/cmd/ocastctl/commands"

func main() {
	commands.Execute()
}
