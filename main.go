package main

import "github.com/Yates-Labs/frc-reviewer/cmd"

func main() {
	cmd.Execute()
}
