package main

import "github.com/campusevents/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
