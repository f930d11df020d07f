package main

import "ckeytools/cmd"

func main() {
	cmd.Execute()
}
