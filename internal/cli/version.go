package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time. Commit falls back to the VCS stamp the
// go tool embeds when ldflags are absent.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var shortVersion bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the companion server and client version",
	Run: func(cmd *cobra.Command, args []string) {
		if shortVersion {
			fmt.Println(Version)
			return
		}
		fmt.Printf("companion %s (commit: %s, built: %s, %s)\n", Version, commit(), BuildDate, runtime.Version())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&shortVersion, "short", false, "print only the version number")
}

// VersionString is what /api/health reports as the server version.
func VersionString() string {
	return fmt.Sprintf("companion/%s (%s)", Version, commit())
}

func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return Commit
}
