package main

import "github.com/shadowscope/shadow-ai-assessor/internal/cli"

func main() {
	cli.Execute()
}
