package main

import (
	"os"

	"github.com/eren1106/video-audio-to-text-converter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
