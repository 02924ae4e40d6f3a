package main

import "github.com/vietddude/ecosetu/internal/cli"

func main() {
	cli.Execute()
}
