package main

import "github.com/notargets/conduction/cmd"

func main() {
	cmd.Execute()
}
