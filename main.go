// Package main is the entry point for the candlecache CLI
package main

import (
	"github.com/tradeflow/candlecache/cmd"
)

func main() {
	cmd.Execute()
}
