package cmd

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/ccs/pkg/settings"
)

type versionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

var versionJSON bool

func buildVersionData() versionData {
	data := versionData{
		Version:   settings.VersionInformation.BuildVersion,
		Commit:    settings.VersionInformation.Commit,
		BuildTime: settings.VersionInformation.BuildTime,
		GoVersion: "unknown",
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		data.GoVersion = info.GoVersion
		if data.Version == "v0.0.0-nightly" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			data.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && data.Commit == "unknown" {
				data.Commit = s.Value
			}
		}
	}
	return data
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data := buildVersionData()
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
		fmt.Fprintf(out, "%s %s\n", settings.CliBinaryName, data.Version)
		fmt.Fprintf(out, "  commit:     %s\n", data.Commit)
		fmt.Fprintf(out, "  built:      %s\n", data.BuildTime)
		fmt.Fprintf(out, "  go version: %s\n", data.GoVersion)
		return nil
	},
}

func init() { //nolint:gochecknoinits
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version information as JSON")
}
