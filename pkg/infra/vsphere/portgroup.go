package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/netvalid/vlanpath/pkg/infra"
	"github.com/netvalid/vlanpath/pkg/util"
)

// testPortgroupPorts is the port count of an ephemeral test portgroup. One
// port would do; a few spares avoid reconfigure churn if a stale binding
// lingers.
const testPortgroupPorts = 8

// GetOrCreateTestNetwork returns the portgroup named name on sw, creating an
// early-binding portgroup if none exists. A portgroup left behind by a prior
// run is adopted as-is.
func (c *Client) GetOrCreateTestNetwork(ctx context.Context, sw infra.SwitchDescriptor, name string) (infra.NetworkRef, error) {
	dvs, err := c.dvSwitch(ctx, sw.ID)
	if err != nil {
		return infra.NetworkRef{}, err
	}

	if ref, ok, err := c.findPortgroup(ctx, dvs, sw.ID, name); err != nil {
		return infra.NetworkRef{}, err
	} else if ok {
		util.Debugf("Reusing test portgroup %s", name)
		return ref, nil
	}

	spec := types.DVPortgroupConfigSpec{
		Name:     name,
		Type:     string(types.DistributedVirtualPortgroupPortgroupTypeEarlyBinding),
		NumPorts: testPortgroupPorts,
		DefaultPortConfig: &types.VMwareDVSPortSetting{
			Vlan: &types.VmwareDistributedVirtualSwitchVlanIdSpec{},
		},
	}
	task, err := dvs.AddPortgroup(ctx, []types.DVPortgroupConfigSpec{spec})
	if err != nil {
		return infra.NetworkRef{}, fmt.Errorf("creating portgroup %s: %w", name, err)
	}
	if err := task.Wait(ctx); err != nil {
		return infra.NetworkRef{}, fmt.Errorf("creating portgroup %s: %w", name, err)
	}
	util.Debugf("Created test portgroup %s", name)

	ref, ok, err := c.findPortgroup(ctx, dvs, sw.ID, name)
	if err != nil {
		return infra.NetworkRef{}, err
	}
	if !ok {
		return infra.NetworkRef{}, fmt.Errorf("portgroup %s vanished after creation", name)
	}
	return ref, nil
}

// findPortgroup looks a portgroup up by name on a switch and caches its
// managed object under the returned ref's ID.
func (c *Client) findPortgroup(ctx context.Context, dvs *object.DistributedVirtualSwitch, dvsUUID, name string) (infra.NetworkRef, bool, error) {
	var dvsMo mo.DistributedVirtualSwitch
	if err := c.s.pc.RetrieveOne(ctx, dvs.Reference(), []string{"portgroup"}, &dvsMo); err != nil {
		return infra.NetworkRef{}, false, fmt.Errorf("reading portgroups: %w", err)
	}
	if len(dvsMo.Portgroup) == 0 {
		return infra.NetworkRef{}, false, nil
	}

	var pgs []mo.DistributedVirtualPortgroup
	if err := c.s.pc.Retrieve(ctx, dvsMo.Portgroup, []string{"name", "key"}, &pgs); err != nil {
		return infra.NetworkRef{}, false, fmt.Errorf("reading portgroups: %w", err)
	}
	for _, pg := range pgs {
		if pg.Name != name {
			continue
		}
		ref := infra.NetworkRef{ID: pg.Key, Name: pg.Name}
		c.mu.Lock()
		c.testNets[ref.ID] = object.NewDistributedVirtualPortgroup(c.s.vc.Client, pg.Reference())
		c.testDVS[ref.ID] = dvsUUID
		c.mu.Unlock()
		return ref, true, nil
	}
	return infra.NetworkRef{}, false, nil
}

func (c *Client) testNetwork(network infra.NetworkRef) (*object.DistributedVirtualPortgroup, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pg, ok := c.testNets[network.ID]
	if !ok {
		return nil, "", fmt.Errorf("unknown test network %s", network.Name)
	}
	return pg, c.testDVS[network.ID], nil
}

// reconfigure applies a portgroup config spec, re-reading the config version
// first: reconfiguration is rejected on a stale version.
func (c *Client) reconfigure(ctx context.Context, network infra.NetworkRef, mutate func(*types.DVPortgroupConfigSpec)) error {
	pg, _, err := c.testNetwork(network)
	if err != nil {
		return err
	}

	var pgMo mo.DistributedVirtualPortgroup
	if err := c.s.pc.RetrieveOne(ctx, pg.Reference(), []string{"config.configVersion"}, &pgMo); err != nil {
		return fmt.Errorf("reading config version of %s: %w", network.Name, err)
	}

	spec := types.DVPortgroupConfigSpec{ConfigVersion: pgMo.Config.ConfigVersion}
	mutate(&spec)

	task, err := pg.Reconfigure(ctx, spec)
	if err != nil {
		return err
	}
	return task.Wait(ctx)
}

// SetVlan retags the test portgroup.
func (c *Client) SetVlan(ctx context.Context, network infra.NetworkRef, vlanID int) error {
	err := c.reconfigure(ctx, network, func(spec *types.DVPortgroupConfigSpec) {
		spec.DefaultPortConfig = &types.VMwareDVSPortSetting{
			Vlan: &types.VmwareDistributedVirtualSwitchVlanIdSpec{VlanId: int32(vlanID)},
		}
	})
	if err != nil {
		return fmt.Errorf("setting VLAN %d on %s: %w", vlanID, network.Name, err)
	}
	return nil
}

// GetUplinkPolicy reads the current teaming policy of the test portgroup.
func (c *Client) GetUplinkPolicy(ctx context.Context, network infra.NetworkRef) (infra.UplinkPolicy, error) {
	pg, dvsUUID, err := c.testNetwork(network)
	if err != nil {
		return infra.UplinkPolicy{}, err
	}

	var pgMo mo.DistributedVirtualPortgroup
	if err := c.s.pc.RetrieveOne(ctx, pg.Reference(), []string{"config.defaultPortConfig"}, &pgMo); err != nil {
		return infra.UplinkPolicy{}, fmt.Errorf("reading policy of %s: %w", network.Name, err)
	}
	setting, ok := pgMo.Config.DefaultPortConfig.(*types.VMwareDVSPortSetting)
	if !ok {
		return infra.UplinkPolicy{}, fmt.Errorf("portgroup %s has no VMware port settings", network.Name)
	}

	uplinks, err := c.uplinkNames(ctx, dvsUUID)
	if err != nil {
		return infra.UplinkPolicy{}, err
	}
	return teamingToPolicy(setting.UplinkTeamingPolicy, uplinks), nil
}

// SetUplinkPolicy applies a partial teaming update. vSphere models "unused"
// implicitly (in neither order list), so the write only carries the merged
// active and standby orders.
func (c *Client) SetUplinkPolicy(ctx context.Context, network infra.NetworkRef, update infra.PolicyUpdate) error {
	current, err := c.GetUplinkPolicy(ctx, network)
	if err != nil {
		return err
	}
	merged := infra.UplinkPolicy{Active: current.Active, Standby: current.Standby}
	if update.Active != nil {
		merged.Active = update.Active
	}
	if update.Standby != nil {
		merged.Standby = update.Standby
	}
	if update.Unused != nil {
		// Explicitly unused uplinks must not linger in the order lists.
		for _, u := range update.Unused {
			merged.Active = util.WithoutString(merged.Active, u)
			merged.Standby = util.WithoutString(merged.Standby, u)
		}
	}

	err = c.reconfigure(ctx, network, func(spec *types.DVPortgroupConfigSpec) {
		spec.DefaultPortConfig = &types.VMwareDVSPortSetting{
			UplinkTeamingPolicy: &types.VmwareUplinkPortTeamingPolicy{
				UplinkPortOrder: &types.VMwareUplinkPortOrderPolicy{
					ActiveUplinkPort:  merged.Active,
					StandbyUplinkPort: merged.Standby,
				},
			},
		}
	})
	if err != nil {
		return fmt.Errorf("setting teaming policy on %s: %w", network.Name, err)
	}
	return nil
}

// DestroyNetwork removes a test portgroup.
func (c *Client) DestroyNetwork(ctx context.Context, network infra.NetworkRef) error {
	pg, _, err := c.testNetwork(network)
	if err != nil {
		return err
	}
	task, err := pg.Destroy(ctx)
	if err != nil {
		return fmt.Errorf("destroying portgroup %s: %w", network.Name, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("destroying portgroup %s: %w", network.Name, err)
	}
	c.mu.Lock()
	delete(c.testNets, network.ID)
	delete(c.testDVS, network.ID)
	c.mu.Unlock()
	return nil
}

// uplinkNames reads the uplink port names of a switch by UUID.
func (c *Client) uplinkNames(ctx context.Context, dvsUUID string) ([]string, error) {
	dvs, err := c.dvSwitch(ctx, dvsUUID)
	if err != nil {
		return nil, err
	}
	var dvsMo mo.DistributedVirtualSwitch
	if err := c.s.pc.RetrieveOne(ctx, dvs.Reference(), []string{"config"}, &dvsMo); err != nil {
		return nil, fmt.Errorf("reading switch config: %w", err)
	}
	return switchUplinkNames(dvsMo), nil
}
