// Command streamchat is a terminal client for a streaming retrieval chat service.
package main

import "github.com/diogo/streamchat/internal/commands"

func main() {
	commands.Execute()
}
