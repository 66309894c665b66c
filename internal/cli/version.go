package cli

import (
	"fmt"
	stdruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/output"
	"github.com/noccbuild/walletlink/internal/version"
)

// Build information, overridden at link time.
//nolint:gochecknoglobals // overridden via -ldflags at release build time
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// releaseOwner and releaseRepo locate published releases on GitHub.
const (
	releaseOwner = "noccbuild"
	releaseRepo  = "walletlink"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

type versionView struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Latest    string `json:"latest,omitempty"`
	UpToDate  *bool  `json:"up_to_date,omitempty"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		view := versionView{
			Version:   buildVersion,
			Commit:    buildCommit,
			BuildDate: buildDate,
			GoVersion: stdruntime.Version(),
			Platform:  stdruntime.GOOS + "/" + stdruntime.GOARCH,
		}

		if versionCheck {
			release, err := version.GetLatestRelease(cmd.Context(), releaseOwner, releaseRepo)
			if err != nil {
				return fmt.Errorf("checking latest release: %w", err)
			}
			view.Latest = release.TagName
			upToDate := version.CompareVersions(buildVersion, release.TagName) >= 0
			view.UpToDate = &upToDate
		}

		if formatter.IsJSON() {
			return formatter.Print(view)
		}

		_ = formatter.Printf("walletlink %s (commit %s, built %s, %s %s)\n",
			view.Version, view.Commit, view.BuildDate, view.GoVersion, view.Platform)
		if versionCheck {
			if *view.UpToDate {
				output.Success("You are on the latest release")
			} else {
				output.Warnf("A newer release is available: %s", view.Latest)
			}
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
