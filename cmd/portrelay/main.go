package main

import "github.com/julienstroheker/portrelay/forwarder/cmd"

func main() {
	cmd.Execute()
}
