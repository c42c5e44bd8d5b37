package main

import "github.com/kartoza/attention-is-key/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
