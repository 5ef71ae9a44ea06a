// The main package for the websift executable.
package main

import (
	"github.com/websift/websift/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
