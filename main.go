package main

import "library-circulation/cli"

func main() {
	cli.Execute()
}
