package main

import "github.com/mselser95/marketview/cmd"

func main() {
	cmd.Execute()
}
