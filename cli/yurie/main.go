package main

import (
	"os"

	yuriecmder "github.com/yurie-chat/yurie/cmd/yurie"
)

func main() {
	cmd := yuriecmder.NewYurieCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
