package vcenter

import (
	"context"

	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/types"
)

// pageSize bounds one PropertyCollector response. The fetch loop follows
// continuation tokens until the server reports no more objects, so no single
// response grows without bound.
const pageSize = 500

// propertyPager abstracts the PropertyCollector's paginated bulk retrieval
// so the fetch pipeline can be driven by a fake source in tests.
type propertyPager interface {
	RetrievePage(ctx context.Context, spec []types.PropertyFilterSpec) (*types.RetrieveResult, error)
	ContinuePage(ctx context.Context, token string) (*types.RetrieveResult, error)
}

type soapPager struct {
	client *vim25.Client
}

func (p *soapPager) RetrievePage(ctx context.Context, spec []types.PropertyFilterSpec) (*types.RetrieveResult, error) {
	req := types.RetrievePropertiesEx{
		This:    p.client.ServiceContent.PropertyCollector,
		SpecSet: spec,
		Options: types.RetrieveOptions{MaxObjects: pageSize},
	}
	res, err := methods.RetrievePropertiesEx(ctx, p.client, &req)
	if err != nil {
		return nil, err
	}
	return res.Returnval, nil
}

func (p *soapPager) ContinuePage(ctx context.Context, token string) (*types.RetrieveResult, error) {
	req := types.ContinueRetrievePropertiesEx{
		This:  p.client.ServiceContent.PropertyCollector,
		Token: token,
	}
	res, err := methods.ContinueRetrievePropertiesEx(ctx, p.client, &req)
	if err != nil {
		return nil, err
	}
	return &res.Returnval, nil
}

// retrieveAll drains a paginated property retrieval, following continuation
// tokens until the collector signals completion.
func retrieveAll(ctx context.Context, pager propertyPager, spec []types.PropertyFilterSpec) ([]types.ObjectContent, error) {
	page, err := pager.RetrievePage(ctx, spec)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	objects := page.Objects
	for page.Token != "" {
		if page, err = pager.ContinuePage(ctx, page.Token); err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
	}
	return objects, nil
}

// viewFilter builds the filter spec asking for the given property paths on
// every object of each listed kind reachable through a container view. One
// filter covers all kinds, so a whole inventory dimension costs a single
// paginated retrieval instead of one round-trip per object.
func viewFilter(view types.ManagedObjectReference, props map[string][]string) []types.PropertyFilterSpec {
	propSet := make([]types.PropertySpec, 0, len(props))
	for kind, pathSet := range props {
		propSet = append(propSet, types.PropertySpec{Type: kind, PathSet: pathSet})
	}

	return []types.PropertyFilterSpec{{
		ObjectSet: []types.ObjectSpec{{
			Obj:  view,
			Skip: types.NewBool(true),
			SelectSet: []types.BaseSelectionSpec{
				&types.TraversalSpec{
					SelectionSpec: types.SelectionSpec{Name: "view"},
					Type:          "ContainerView",
					Path:          "view",
				},
			},
		}},
		PropSet: propSet,
	}}
}
