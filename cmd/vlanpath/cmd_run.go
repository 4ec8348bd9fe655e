package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netvalid/vlanpath/pkg/cli"
	"github.com/netvalid/vlanpath/pkg/infra/vsphere"
	"github.com/netvalid/vlanpath/pkg/publish"
	"github.com/netvalid/vlanpath/pkg/util"
	"github.com/netvalid/vlanpath/pkg/vlantest"
)

const defaultSpecsPath = "vlan-specs.csv"

type runOptions struct {
	specsPath      string
	cluster        string
	vlanFilter     int
	outPath        string
	excludes       []string
	cleanupNetwork bool
	strict         bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [host...]",
		Short: "Verify VLAN reachability on the given hosts",
		Long: `Run verifies every VLAN-tagged portgroup on every distributed switch of the
given hosts (or of a cluster's hosts with --cluster). Per-host and per-VLAN
failures become Failed result rows; only a missing spec file aborts the run.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.cluster == "" {
				return fmt.Errorf("at least one host (or --cluster) is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.specsPath, "specs", "s", defaultSpecsPath, "VLAN spec CSV file")
	cmd.Flags().StringVar(&opts.cluster, "cluster", "", "verify every host in this cluster")
	cmd.Flags().IntVar(&opts.vlanFilter, "vlan", 0, "restrict testing to a single VLAN")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "results CSV file (default vlanpath-results-<timestamp>.csv)")
	cmd.Flags().StringArrayVar(&opts.excludes, "exclude", nil, "switch name glob to skip (repeatable)")
	cmd.Flags().BoolVar(&opts.cleanupNetwork, "cleanup-network", false, "remove ephemeral test portgroups after each switch pass")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit nonzero when any result is Failed or Partial")

	return cmd
}

func runVerify(hosts []string, opts runOptions) error {
	// The spec file is the only fatal input: abort before touching any host.
	specs, err := vlantest.LoadSpecs(opts.specsPath)
	if err != nil {
		return err
	}
	util.Infof("Loaded %d VLAN specs from %s", len(specs), opts.specsPath)

	if cfg.VCenter.URL == "" {
		return fmt.Errorf("vcenter.url is not configured (see ~/.vlanpath/config.yaml)")
	}

	vcPassword, err := resolvePassword("VLANPATH_VCENTER_PASSWORD", fmt.Sprintf("vCenter password for %s", cfg.VCenter.User))
	if err != nil {
		return err
	}
	esxiPassword, err := resolvePassword("VLANPATH_ESXI_PASSWORD", fmt.Sprintf("ESXi SSH password for %s", cfg.ESXi.User))
	if err != nil {
		return err
	}

	// SIGINT cancels hosts that have not started; in-flight switch passes
	// still run their best-effort adapter teardown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := vsphere.Connect(ctx, cfg.VCenter.URL, cfg.VCenter.User, vcPassword, cfg.VCenter.Insecure)
	if err != nil {
		return err
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.Logout(logoutCtx); err != nil {
			util.Warnf("vCenter logout: %v", err)
		}
	}()

	if opts.cluster != "" {
		clusterHosts, err := session.ClusterHosts(ctx, opts.cluster)
		if err != nil {
			return err
		}
		if len(clusterHosts) == 0 {
			return fmt.Errorf("cluster %s has no hosts", opts.cluster)
		}
		hosts = append(hosts, clusterHosts...)
	}

	client := vsphere.NewClient(session, vsphere.SSHConfig{
		User:     cfg.ESXi.User,
		Password: esxiPassword,
	})
	defer client.Close()

	verifier := vlantest.NewVerifier(client, specs, vlantest.Options{
		VlanFilter:      opts.vlanFilter,
		ExcludeSwitches: append(append([]string(nil), cfg.ExcludeSwitches...), opts.excludes...),
		ProbeCount:      cfg.ProbeCount,
		ProbeTimeout:    cfg.ProbeTimeout.Std(),
		CleanupNetwork:  opts.cleanupNetwork || cfg.CleanupNetwork,
	})

	started := time.Now()
	hostResults := vlantest.RunHosts(ctx, verifier, hosts, cfg.MaxConcurrency)
	results := vlantest.Flatten(hostResults)

	vlantest.RenderTable(os.Stdout, results)

	summary := vlantest.Summarize(results)
	fmt.Printf("\n%s in %s\n", summary, time.Since(started).Round(time.Second))

	outPath := opts.outPath
	if outPath == "" {
		outPath = defaultOutputPath(started)
	}
	if err := vlantest.WriteCSV(outPath, results); err != nil {
		return err
	}
	fmt.Printf("Results written to %s\n", outPath)

	if cfg.Redis.Addr != "" {
		publishResults(hostResults, summary, started)
	}

	if opts.strict && (summary.Failed > 0 || summary.Partial > 0) {
		return fmt.Errorf("strict mode: %d failed, %d partial", summary.Failed, summary.Partial)
	}
	if summary.Failed > 0 {
		fmt.Println(cli.Red("Some uplink tests failed; see results for details."))
	}
	return nil
}

// publishResults pushes the run to redis. Publishing is best-effort: a
// broken dashboard sink never fails a run that has already produced results.
func publishResults(hostResults []vlantest.HostResult, summary vlantest.Summary, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runID := started.UTC().Format("20060102-150405")
	pub, err := publish.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, runID)
	if err != nil {
		util.Warnf("Skipping redis publish: %v", err)
		return
	}
	defer pub.Close()

	for _, hr := range hostResults {
		if err := pub.PublishHost(ctx, hr.Host, hr.Results); err != nil {
			util.Warnf("Publishing %s results: %v", hr.Host, err)
			return
		}
	}
	if err := pub.Finish(ctx, summary); err != nil {
		util.Warnf("Finishing redis publish: %v", err)
		return
	}
	util.Infof("Published results to redis stream %s", pub.StreamKey())
}

// defaultOutputPath derives the timestamped default results file name.
func defaultOutputPath(t time.Time) string {
	return "vlanpath-results-" + t.Format("20060102-150405") + ".csv"
}
