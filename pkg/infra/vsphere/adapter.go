package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/netvalid/vlanpath/pkg/infra"
	"github.com/netvalid/vlanpath/pkg/util"
)

// GetOrCreateTestAdapter returns the vmkernel adapter on host bound to the
// test portgroup, creating one (initially DHCP) if none exists.
func (c *Client) GetOrCreateTestAdapter(ctx context.Context, host string, sw infra.SwitchDescriptor, network infra.NetworkRef) (infra.AdapterRef, error) {
	if device, ok, err := c.findVnic(ctx, host, network.ID); err != nil {
		return infra.AdapterRef{}, err
	} else if ok {
		util.WithHost(host).Debugf("Reusing test adapter %s", device)
		return infra.AdapterRef{Device: device}, nil
	}

	ns, err := c.networkSystem(ctx, host)
	if err != nil {
		return infra.AdapterRef{}, err
	}
	spec := types.HostVirtualNicSpec{
		Ip: &types.HostIpConfig{Dhcp: true},
		DistributedVirtualPort: &types.DistributedVirtualSwitchPortConnection{
			SwitchUuid:   sw.ID,
			PortgroupKey: network.ID,
		},
	}
	device, err := ns.AddVirtualNic(ctx, "", spec)
	if err != nil {
		return infra.AdapterRef{}, fmt.Errorf("adding test adapter on %s: %w", host, err)
	}
	util.WithHost(host).Debugf("Created test adapter %s", device)
	return infra.AdapterRef{Device: device}, nil
}

// findVnic looks for an existing vmkernel adapter bound to the portgroup key.
func (c *Client) findVnic(ctx context.Context, host, portgroupKey string) (string, bool, error) {
	hs, err := c.hostSystem(ctx, host)
	if err != nil {
		return "", false, err
	}
	var h mo.HostSystem
	if err := c.s.pc.RetrieveOne(ctx, hs.Reference(), []string{"config.network.vnic"}, &h); err != nil {
		return "", false, fmt.Errorf("reading adapters of %s: %w", host, err)
	}
	if h.Config == nil || h.Config.Network == nil {
		return "", false, nil
	}
	for _, vnic := range h.Config.Network.Vnic {
		dvp := vnic.Spec.DistributedVirtualPort
		if dvp != nil && dvp.PortgroupKey == portgroupKey {
			return vnic.Device, true, nil
		}
	}
	return "", false, nil
}

// ConfigureStaticAddress assigns a static address to the test adapter.
func (c *Client) ConfigureStaticAddress(ctx context.Context, host string, adapter infra.AdapterRef, ip, mask string) error {
	ns, err := c.networkSystem(ctx, host)
	if err != nil {
		return err
	}
	spec := types.HostVirtualNicSpec{
		Ip: &types.HostIpConfig{
			Dhcp:       false,
			IpAddress:  ip,
			SubnetMask: mask,
		},
	}
	if err := ns.UpdateVirtualNic(ctx, adapter.Device, spec); err != nil {
		return fmt.Errorf("configuring %s on %s with %s/%s: %w", adapter.Device, host, ip, mask, err)
	}
	return nil
}

// ConfigureDHCP requests a dynamic lease on the test adapter.
func (c *Client) ConfigureDHCP(ctx context.Context, host string, adapter infra.AdapterRef) error {
	ns, err := c.networkSystem(ctx, host)
	if err != nil {
		return err
	}
	spec := types.HostVirtualNicSpec{
		Ip: &types.HostIpConfig{Dhcp: true},
	}
	if err := ns.UpdateVirtualNic(ctx, adapter.Device, spec); err != nil {
		return fmt.Errorf("configuring DHCP on %s of %s: %w", adapter.Device, host, err)
	}
	return nil
}

// DestroyAdapter removes the test adapter from the host.
func (c *Client) DestroyAdapter(ctx context.Context, host string, adapter infra.AdapterRef) error {
	ns, err := c.networkSystem(ctx, host)
	if err != nil {
		return err
	}
	if err := ns.RemoveVirtualNic(ctx, adapter.Device); err != nil {
		return fmt.Errorf("removing %s from %s: %w", adapter.Device, host, err)
	}
	return nil
}
