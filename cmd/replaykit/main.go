/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/replaykit/cmd/replaykit/cmd"

func main() {
	cmd.Execute()
}
