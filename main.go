package main

import "github.com/kozaktomas/photo-fingerprint/cmd"

func main() {
	cmd.Execute()
}
