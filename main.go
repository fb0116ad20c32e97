package main

import "github.com/javanhut/contentsync/cli"

func main() {
	cli.Execute()
}
