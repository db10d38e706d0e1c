package main

import "trending-service/internal/cli"

func main() {
	cli.Execute()
}
