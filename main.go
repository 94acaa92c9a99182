package main

import "github.com/solidation/solidation/cmd"

func main() {
	cmd.Execute()
}
