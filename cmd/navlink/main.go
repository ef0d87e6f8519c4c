package main

import "github.com/The-Promised-Neverland/navlink/cmd"

func main() {
	cmd.Execute()
}
