package main

import (
	"tripwatch/internal/cli"
)

func main() {
	cli.Execute()
}
