// The main package for the cidades executable.
package main

import (
	"github.com/JakeFAU/cidades-pipeline/cmd"
)

func main() {
	cmd.Execute()
}
