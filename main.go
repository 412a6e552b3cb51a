package main

import "github.com/goodaegwang/cirrus/cmd"

func main() {
	cmd.Execute()
}
