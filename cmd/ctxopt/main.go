package main

import "ctxopt/internal/cli"

func main() {
	cli.Execute()
}
