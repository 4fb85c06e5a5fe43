package main

import (
	"fmt"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

func printBanner() {
	defer fmt.Println()

	banner := figure.NewFigure("vwalctl", "small", true)
	bannerStr := banner.String()
	lines := strings.Split(bannerStr, "\n")

	maxWidth := 0
	for _, line := range lines {
		if len(line) > maxWidth {
			maxWidth = len(line)
		}
	}

	color.New(color.FgCyan, color.Bold).Println(bannerStr)
	centerPrint("Vector WAL buffer manager, at your service.", maxWidth, color.FgHiBlack)
}

func centerPrint(text string, width int, attr color.Attribute) {
	padding := (width - len(text)) / 2
	if padding < 0 {
		padding = 0
	}
	color.New(attr).Println(strings.Repeat(" ", padding) + text)
}
