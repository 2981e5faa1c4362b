package main

import "github.com/oshokin/rwb-release/cmd/rwb-release/cmd"

func main() {
	cmd.Execute()
}
