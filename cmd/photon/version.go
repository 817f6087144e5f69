package photon

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photon-img/photon/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "core",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("photon version %s\n", version.Version)
			fmt.Printf("Build time: %s\n", version.BuildTime)
			fmt.Printf("Commit: %s\n", version.Commit)
		},
	}
}
