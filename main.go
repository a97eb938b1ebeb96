package main

import "baserow-bridge/internal/cli"

func main() {
	cli.Execute()
}
