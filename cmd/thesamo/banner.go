package main

import (
	"fmt"
	"io"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/version"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

const banner = `
 _   _
| |_| |__   ___  ___  __ _ _ __ ___   ___
| __| '_ \ / _ \/ __|/ _' | '_ ' _ \ / _ \
| |_| | | |  __/\__ \ (_| | | | | | | (_) |
 \__|_| |_|\___||___/\__,_|_| |_| |_|\___/
`

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

func showHeader(w io.Writer, role config.Role, cfg *config.Config) {
	color.New(color.FgHiCyan, color.Bold).Fprintln(w, banner)
	fmt.Fprintf(w, "%s %s\n", cyan("version:"), version.Short())
	fmt.Fprintf(w, "%s %s\n", cyan("role:   "), green(string(role)))
	fmt.Fprintf(w, "%s %s\n", cyan("config: "), cfg.Path)
	fmt.Fprintf(w, "%s %s\n", cyan("tags:   "), cfg.Markers())
	fmt.Fprintf(w, "%s %s\n\n", cyan("files:  "), humanize.Comma(int64(len(cfg.Files))))
}
