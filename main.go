package main

import "github.com/isdelr/schedpanel/internal/cli"

func main() {
	cli.Execute()
}
