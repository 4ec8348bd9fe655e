package vsphere

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"golang.org/x/crypto/ssh"

	"github.com/netvalid/vlanpath/pkg/infra"
	"github.com/netvalid/vlanpath/pkg/util"
)

// SSHConfig holds the credentials for the on-host diagnostic ping.
type SSHConfig struct {
	User     string
	Password string
}

// Client implements infra.Client against a vCenter session. Managed object
// lookups are cached; the cache is only a lookup aid, never a substitute for
// re-reading configuration state.
type Client struct {
	s   *Session
	ssh SSHConfig

	mu       sync.Mutex
	hosts    map[string]*object.HostSystem
	netSys   map[string]*object.HostNetworkSystem
	switches map[string]*object.DistributedVirtualSwitch // by UUID
	testNets map[string]*object.DistributedVirtualPortgroup
	testDVS  map[string]string // test network ID -> switch UUID
	sshConns map[string]*ssh.Client
}

// NewClient wraps a session into the verifier's capability set.
func NewClient(s *Session, sshCfg SSHConfig) *Client {
	return &Client{
		s:        s,
		ssh:      sshCfg,
		hosts:    make(map[string]*object.HostSystem),
		netSys:   make(map[string]*object.HostNetworkSystem),
		switches: make(map[string]*object.DistributedVirtualSwitch),
		testNets: make(map[string]*object.DistributedVirtualPortgroup),
		testDVS:  make(map[string]string),
		sshConns: make(map[string]*ssh.Client),
	}
}

// Close releases cached SSH connections. The vCenter session is owned by the
// caller and is not touched.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for host, conn := range c.sshConns {
		conn.Close()
		delete(c.sshConns, host)
	}
}

func (c *Client) hostSystem(ctx context.Context, host string) (*object.HostSystem, error) {
	c.mu.Lock()
	if hs, ok := c.hosts[host]; ok {
		c.mu.Unlock()
		return hs, nil
	}
	c.mu.Unlock()

	hs, err := c.s.finder.HostSystem(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("looking up host %s: %w", host, err)
	}
	c.mu.Lock()
	c.hosts[host] = hs
	c.mu.Unlock()
	return hs, nil
}

func (c *Client) networkSystem(ctx context.Context, host string) (*object.HostNetworkSystem, error) {
	c.mu.Lock()
	if ns, ok := c.netSys[host]; ok {
		c.mu.Unlock()
		return ns, nil
	}
	c.mu.Unlock()

	hs, err := c.hostSystem(ctx, host)
	if err != nil {
		return nil, err
	}
	ns, err := hs.ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("network system of %s: %w", host, err)
	}
	c.mu.Lock()
	c.netSys[host] = ns
	c.mu.Unlock()
	return ns, nil
}

// dvSwitch resolves a distributed switch by UUID via the DVS manager.
func (c *Client) dvSwitch(ctx context.Context, uuid string) (*object.DistributedVirtualSwitch, error) {
	c.mu.Lock()
	if dvs, ok := c.switches[uuid]; ok {
		c.mu.Unlock()
		return dvs, nil
	}
	c.mu.Unlock()

	req := types.QueryDvsByUuid{
		This: *c.s.vc.ServiceContent.DvSwitchManager,
		Uuid: uuid,
	}
	res, err := methods.QueryDvsByUuid(ctx, c.s.vc.Client, &req)
	if err != nil {
		return nil, fmt.Errorf("resolving switch %s: %w", uuid, err)
	}
	if res.Returnval == nil {
		return nil, fmt.Errorf("switch %s not found", uuid)
	}
	dvs := object.NewDistributedVirtualSwitch(c.s.vc.Client, *res.Returnval)
	c.mu.Lock()
	c.switches[uuid] = dvs
	c.mu.Unlock()
	return dvs, nil
}

// ListSwitches enumerates the distributed switches the host participates in,
// from the host's proxy switch list.
func (c *Client) ListSwitches(ctx context.Context, host string) ([]infra.SwitchDescriptor, error) {
	hs, err := c.hostSystem(ctx, host)
	if err != nil {
		return nil, err
	}

	var h mo.HostSystem
	if err := c.s.pc.RetrieveOne(ctx, hs.Reference(), []string{"config.network.proxySwitch"}, &h); err != nil {
		return nil, fmt.Errorf("reading proxy switches of %s: %w", host, err)
	}
	if h.Config == nil || h.Config.Network == nil {
		return nil, fmt.Errorf("host %s has no network config", host)
	}

	var switches []infra.SwitchDescriptor
	for _, ps := range h.Config.Network.ProxySwitch {
		switches = append(switches, infra.SwitchDescriptor{
			ID:   ps.DvsUuid,
			Name: ps.DvsName,
		})
	}
	return switches, nil
}

// ListVlanNetworks enumerates the single-VLAN-tagged portgroups of a switch
// with their teaming policy. Trunk, private-VLAN, and untagged portgroups
// are not candidates for testing and are skipped.
func (c *Client) ListVlanNetworks(ctx context.Context, host string, sw infra.SwitchDescriptor, vlanFilter int) ([]infra.PortGroup, error) {
	dvs, err := c.dvSwitch(ctx, sw.ID)
	if err != nil {
		return nil, err
	}

	var dvsMo mo.DistributedVirtualSwitch
	if err := c.s.pc.RetrieveOne(ctx, dvs.Reference(), []string{"portgroup", "config"}, &dvsMo); err != nil {
		return nil, fmt.Errorf("reading switch %s: %w", sw.Name, err)
	}
	uplinks := switchUplinkNames(dvsMo)

	if len(dvsMo.Portgroup) == 0 {
		return nil, nil
	}
	var pgs []mo.DistributedVirtualPortgroup
	if err := c.s.pc.Retrieve(ctx, dvsMo.Portgroup, []string{"name", "key", "config.defaultPortConfig"}, &pgs); err != nil {
		return nil, fmt.Errorf("reading portgroups of %s: %w", sw.Name, err)
	}

	var out []infra.PortGroup
	for _, pg := range pgs {
		setting, ok := pg.Config.DefaultPortConfig.(*types.VMwareDVSPortSetting)
		if !ok {
			continue
		}
		vlanSpec, ok := setting.Vlan.(*types.VmwareDistributedVirtualSwitchVlanIdSpec)
		if !ok || vlanSpec.VlanId == 0 {
			continue
		}
		vlanID := int(vlanSpec.VlanId)
		if vlanFilter != 0 && vlanID != vlanFilter {
			continue
		}
		out = append(out, infra.PortGroup{
			Name:   pg.Name,
			VlanID: vlanID,
			Policy: teamingToPolicy(setting.UplinkTeamingPolicy, uplinks),
		})
	}
	return out, nil
}

// switchUplinkNames returns the uplink port names of a distributed switch.
func switchUplinkNames(dvsMo mo.DistributedVirtualSwitch) []string {
	cfg := dvsMo.Config.GetDVSConfigInfo()
	if cfg == nil {
		return nil
	}
	if p, ok := cfg.UplinkPortPolicy.(*types.DVSNameArrayUplinkPortPolicy); ok {
		return p.UplinkPortName
	}
	return nil
}

// teamingToPolicy converts a vSphere teaming policy to the neutral model.
// vSphere has no explicit unused list: an uplink in neither the active nor
// the standby order is unused.
func teamingToPolicy(teaming *types.VmwareUplinkPortTeamingPolicy, uplinks []string) infra.UplinkPolicy {
	var policy infra.UplinkPolicy
	if teaming != nil && teaming.UplinkPortOrder != nil {
		policy.Active = teaming.UplinkPortOrder.ActiveUplinkPort
		policy.Standby = teaming.UplinkPortOrder.StandbyUplinkPort
	}
	for _, u := range uplinks {
		if !util.ContainsString(policy.Active, u) && !util.ContainsString(policy.Standby, u) {
			policy.Unused = append(policy.Unused, u)
		}
	}
	return policy
}
