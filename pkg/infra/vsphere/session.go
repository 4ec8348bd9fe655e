// Package vsphere implements the infra.Client capability set against a
// vCenter (govmomi) plus SSH to the ESXi hosts for the on-host diagnostic
// ping, which the vSphere API does not expose.
package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/netvalid/vlanpath/pkg/util"
)

// Session is an explicit vCenter API session handle. The caller owns its
// lifecycle: acquire once with Connect, pass it to NewClient, Logout after
// all hosts are processed.
type Session struct {
	vc     *govmomi.Client
	finder *find.Finder
	pc     *property.Collector
}

// Connect logs in to vCenter and resolves the default datacenter.
// rawURL may be a bare hostname; /sdk is assumed.
func Connect(ctx context.Context, rawURL, user, password string, insecure bool) (*Session, error) {
	u, err := soap.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing vCenter URL %q: %w", rawURL, err)
	}
	u.User = url.UserPassword(user, password)

	vc, err := govmomi.NewClient(ctx, u, insecure)
	if err != nil {
		return nil, fmt.Errorf("connecting to vCenter %s: %w", u.Host, err)
	}

	finder := find.NewFinder(vc.Client, false)
	dc, err := finder.DefaultDatacenter(ctx)
	if err != nil {
		_ = vc.Logout(ctx)
		return nil, fmt.Errorf("resolving datacenter: %w", err)
	}
	finder.SetDatacenter(dc)

	util.Infof("Connected to vCenter %s", u.Host)
	return &Session{
		vc:     vc,
		finder: finder,
		pc:     property.DefaultCollector(vc.Client),
	}, nil
}

// Logout ends the vCenter session.
func (s *Session) Logout(ctx context.Context) error {
	return s.vc.Logout(ctx)
}
