package main

import "github.com/mcoot/holdem-lobby/internal/cli"

func main() {
	cli.Execute()
}
