package main

import "github.com/focal-ai/focal/internal/cli"

func main() {
	cli.Execute()
}
