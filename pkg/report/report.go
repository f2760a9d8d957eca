package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/morikuni/aec"
)

// Summary is the final status block shown after an install. Presentation
// only; the pipeline decides what goes in it.
type Summary struct {
	Version string
	Dir     string
	Name    string

	// Unmet holds the remediation text of failed requirement checks.
	Unmet []string
}

var (
	good = aec.GreenF.Apply
	warn = aec.YellowF.Apply
	dim  = aec.LightBlackF.Apply
)

func (s *Summary) Render(w io.Writer) {
	fmt.Fprintln(w)

	if len(s.Unmet) == 0 {
		fmt.Fprintf(w, "%s Strata %s was successfully installed into %s\n",
			good("✔"), s.Version, s.Dir)
	} else {
		fmt.Fprintf(w, "%s Strata %s was installed into %s, but your system is missing some requirements:\n",
			warn("!"), s.Version, s.Dir)

		for _, text := range s.Unmet {
			for i, line := range strings.Split(text, "\n") {
				if i == 0 {
					fmt.Fprintf(w, "  %s %s\n", warn("*"), line)
				} else {
					fmt.Fprintf(w, "    %s\n", line)
				}
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintf(w, "  * Enter the project directory: %s\n", dim("cd "+s.Name))
	fmt.Fprintf(w, "  * Start the development server: %s\n", dim("compose serve"))
	fmt.Fprintf(w, "  * Read the documentation at %s\n", dim("https://strata.dev/docs"))
}
