package main

import "github.com/vietddude/orderflow/internal/cli"

func main() {
	cli.Execute()
}
