// Command isocode is the CLI entry point.
package main

import "github.com/isocode-ai/isocode/cmd/isocode/commands"

func main() {
	commands.Execute()
}
