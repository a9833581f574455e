package main

import "coworkshell/internal/cli"

func main() {
	cli.Execute()
}
