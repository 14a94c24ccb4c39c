package main

import "github.com/papapumpkin/pares/cmd"

func main() {
	cmd.Execute()
}
