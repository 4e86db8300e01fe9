package main

import "github.com/wxgate/weather-gateway/cmd"

func main() {
	cmd.Execute()
}
