package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion is called from main to inject build-time version info.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

var rootCmd = &cobra.Command{
	Use:   "imgfit",
	Short: "imgfit serves images scaled on demand",
	Long: `imgfit serves a directory or bucket of images and produces scaled
variants on request. Asking for photo_300x200-crop.jpg returns photo.jpg
(or .png, .gif) resized and cropped to 300x200.

Get started:
  imgfit start --origin ./images`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// changedFlags returns the named flags the user set explicitly, keyed by
// flag name, for use as config.Load overrides.
func changedFlags(fs *pflag.FlagSet, names ...string) map[string]string {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		if wanted[f.Name] {
			out[f.Name] = f.Value.String()
		}
	})
	return out
}
