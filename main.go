package main

import "github.com/drgolem/tuneterm/cmd"

func main() {
	cmd.Execute()
}
