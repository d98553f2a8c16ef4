package main

import "github.com/LENAX/grade-engine/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
