// The main package for the videoscan executable.
package main

import (
	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
