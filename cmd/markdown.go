package cmd

import (
	"fmt"
	"os"

	"github.com/etnz/statement/renderer"
)

// markdownStyle is the glamour style used for terminal output, auto detected when empty.
var markdownStyle = os.Getenv("GLAMOUR_STYLE")

// printMarkdown renders md to the terminal, or prints it as is when it cannot.
func printMarkdown(md string) {
	out, err := renderer.Terminal(md, markdownStyle, 100)
	if err != nil {
		fmt.Fprintln(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
