package main

import "github.com/kidoz/display-priority-manager/cmd"

func main() {
	cmd.Execute()
}
