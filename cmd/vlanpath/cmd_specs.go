package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/netvalid/vlanpath/pkg/cli"
	"github.com/netvalid/vlanpath/pkg/vlantest"
)

func newSpecsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs",
		Short: "Work with the VLAN spec file",
	}
	cmd.AddCommand(newSpecsValidateCmd())
	return cmd
}

func newSpecsValidateCmd() *cobra.Command {
	var specsPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the VLAN spec file without touching vCenter",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := vlantest.LoadSpecs(specsPath)
			if err != nil {
				return err
			}

			vlans := make([]int, 0, len(specs))
			for id := range specs {
				vlans = append(vlans, id)
			}
			sort.Ints(vlans)

			tbl := cli.NewTable("VLAN", "TEST IP", "MASK", "TARGET")
			for _, id := range vlans {
				s := specs[id]
				mask := s.TestMask
				if s.DHCP() {
					mask = "-"
				}
				tbl.Row(strconv.Itoa(id), s.TestIP, mask, s.TargetIP)
			}
			tbl.Flush()

			fmt.Printf("\n%s: %d VLAN specs OK\n", specsPath, len(specs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&specsPath, "specs", "s", defaultSpecsPath, "VLAN spec CSV file")
	return cmd
}
