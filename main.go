package main

import "github.com/daedalus-build/daedalus/cmd"

func main() {
	cmd.Execute()
}
