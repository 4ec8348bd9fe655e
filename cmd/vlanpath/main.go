// vlanpath — VLAN reachability verification for vSphere distributed switches
//
// vlanpath provisions an ephemeral test portgroup and vmkernel adapter on
// each distributed switch of the target hosts, isolates each physical uplink
// in turn, and pings a per-VLAN target to prove that every declared VLAN is
// actually carried on every uplink path.
//
// Usage:
//
//	vlanpath run esx01 esx02          Verify all VLANs on two hosts
//	vlanpath run --cluster prod-a     Verify every host in a cluster
//	vlanpath run --vlan 120 esx01     Verify a single VLAN
//	vlanpath specs validate           Pre-flight check of the spec file
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netvalid/vlanpath/pkg/config"
	"github.com/netvalid/vlanpath/pkg/util"
	"github.com/netvalid/vlanpath/pkg/version"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vlanpath",
	Short:             "VLAN reachability verification for vSphere distributed switches",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `vlanpath verifies that every declared VLAN is reachable over every physical
uplink of the distributed switches on a set of ESXi hosts.

For each (switch, VLAN) pair it creates an ephemeral test portgroup and
vmkernel adapter, mirrors the production teaming policy, isolates each uplink,
and pings a per-VLAN target address. One result row per uplink per VLAN.

  vlanpath run --specs vlan-specs.csv esx01 esx02`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("info")
		}
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.vlanpath/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newRunCmd(),
		newSpecsCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("vlanpath dev build (use 'make build' for version info)")
			} else {
				fmt.Printf("vlanpath %s\n", version.Info())
			}
		},
	}
}
