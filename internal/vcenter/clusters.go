package vcenter

import (
	"context"

	"github.com/vmware/govmomi/vim25/mo"
)

// ListClusters enumerates the server's clusters with their host counts.
// Container counts are small enough that the plain container-view retrieval
// is fine here; only the VM and host fetches need PropertyCollector paging.
func (c *Client) ListClusters(ctx context.Context) ([]ClusterInfo, error) {
	var clusters []ClusterInfo

	err := c.withSession(ctx, func(ctx context.Context, s *conn) error {
		v, err := s.views.CreateContainerView(ctx, s.vim.ServiceContent.RootFolder, []string{"ClusterComputeResource"}, true)
		if err != nil {
			return err
		}
		defer func() { _ = v.Destroy(ctx) }()

		var list []mo.ClusterComputeResource
		if err := v.Retrieve(ctx, []string{"ClusterComputeResource"}, []string{"name", "host"}, &list); err != nil {
			return err
		}

		clusters = make([]ClusterInfo, 0, len(list))
		for _, cluster := range list {
			clusters = append(clusters, ClusterInfo{
				Name:      cluster.Name,
				HostCount: len(cluster.Host),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return clusters, nil
}

// ListDatacenters enumerates the server's datacenters by name.
func (c *Client) ListDatacenters(ctx context.Context) ([]DatacenterInfo, error) {
	var datacenters []DatacenterInfo

	err := c.withSession(ctx, func(ctx context.Context, s *conn) error {
		v, err := s.views.CreateContainerView(ctx, s.vim.ServiceContent.RootFolder, []string{"Datacenter"}, true)
		if err != nil {
			return err
		}
		defer func() { _ = v.Destroy(ctx) }()

		var list []mo.Datacenter
		if err := v.Retrieve(ctx, []string{"Datacenter"}, []string{"name"}, &list); err != nil {
			return err
		}

		datacenters = make([]DatacenterInfo, 0, len(list))
		for _, dc := range list {
			datacenters = append(datacenters, DatacenterInfo{Name: dc.Name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return datacenters, nil
}
