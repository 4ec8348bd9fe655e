package vsphere

import (
	"context"
	"fmt"
	"sort"

	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// ClusterHosts expands a cluster name into its member host names, sorted for
// stable run ordering.
func (s *Session) ClusterHosts(ctx context.Context, cluster string) ([]string, error) {
	cr, err := s.finder.ClusterComputeResource(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("looking up cluster %s: %w", cluster, err)
	}

	hostObjs, err := cr.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing hosts of cluster %s: %w", cluster, err)
	}
	if len(hostObjs) == 0 {
		return nil, nil
	}

	refs := make([]types.ManagedObjectReference, 0, len(hostObjs))
	for _, h := range hostObjs {
		refs = append(refs, h.Reference())
	}
	var hosts []mo.HostSystem
	if err := s.pc.Retrieve(ctx, refs, []string{"name"}, &hosts); err != nil {
		return nil, fmt.Errorf("reading host names of cluster %s: %w", cluster, err)
	}

	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.Name)
	}
	sort.Strings(names)
	return names, nil
}
