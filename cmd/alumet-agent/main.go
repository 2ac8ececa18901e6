// Command alumet-agent runs the measurement pipeline: a configurable set of
// plugins producing sources, transforms and outputs, wired together and
// driven from the command line.
package main

import "github.com/alumet-dev/alumet/cmd"

func main() {
	cmd.Execute()
}
