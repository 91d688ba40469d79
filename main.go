package main

import "rageval/cmd"

func main() {
	cmd.Execute()
}
