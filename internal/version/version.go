package version

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version holds the current build version. Override with
// -ldflags "-X github.com/fusionn-batch/internal/version.Version=v1.2.3".
var Version = "dev"

const (
	separator = "────────────────────────────────────────────────────────────"
	banner    = `
   __           _                       _           _       _     
  / _|_   _ ___(_) ___  _ __  _ __     | |__   __ _| |_ ___| |__  
 | |_| | | / __| |/ _ \| '_ \| '_ \ ___| '_ \ / _' | __/ __| '_ \ 
 |  _| |_| \__ \ | (_) | | | | | | |___| |_) | (_| | || (__| | | |
 |_|  \__,_|___/_|\___/|_| |_|_| |_|   |_.__/ \__,_|\__\___|_| |_|
`
)

// Banner returns the ASCII-art project banner.
func Banner() string {
	return strings.Trim(banner, "\n")
}

// PrintBanner writes the decorated banner and version info to w (stdout if nil).
func PrintBanner(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, Banner())
	fmt.Fprintf(w, "\n  fusionn-batch %s\n", Version)
	fmt.Fprintf(w, "  Batch Media Transcription & Translation Orchestrator\n")
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w)
}
