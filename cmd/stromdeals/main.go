package main

import "github.com/bher20/stromdeals/internal/cli"

func main() {
	cli.Execute()
}
