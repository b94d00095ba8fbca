/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/openboard/openboard/cmd"

func main() {
	cmd.Execute()
}
