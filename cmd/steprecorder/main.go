package main

import "github.com/bryanchriswhite/StepRecorder/cmd/steprecorder/commands"

func main() {
	commands.Execute()
}
