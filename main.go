package main

import "github.com/khanhnv2901/seca-guard/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
