// The main package for the adspend executable.
package main

import (
	"github.com/JakeFAU/sirup-adspend/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
