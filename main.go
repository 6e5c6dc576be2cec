// The main package for the harvester executable.
package main

import (
	"github.com/horsie/harvester/cmd"
)

func main() {
	cmd.Execute()
}
