package main

import "github.com/puppetworks/puppetstage/cmd"

func main() {
	cmd.Execute()
}
