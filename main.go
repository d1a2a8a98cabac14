package main

import "github.com/pemalang/roadsense/internal/cli"

func main() {
	cli.Execute()
}
