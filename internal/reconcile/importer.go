package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sieteunoseis/vcenter-bridge/internal/batch"
	"github.com/sieteunoseis/vcenter-bridge/internal/store"
	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
	"go.uber.org/zap"
)

// ImportRequest selects remote records by their raw vCenter display name.
type ImportRequest struct {
	Selected       []string
	TargetCluster  string
	UpdateExisting bool
	SourceServer   string
}

type ImportResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
	Errors  batch.Errors `json:"errors,omitempty"`
}

// Import creates or updates asset records for the selected remote records.
// Per-record failures are recorded and the batch continues; partial success
// is the expected mode.
func (e *Engine) Import(ctx context.Context, remote []vcenter.VMRecord, req ImportRequest) (*ImportResult, error) {
	local, err := e.store.VirtualMachine().List(ctx)
	if err != nil {
		return nil, err
	}

	localByKey := make(map[string]model.VirtualMachine, len(local))
	for _, vm := range local {
		if key := e.normalizer.Normalize(vm.Name); key != "" {
			localByKey[key] = vm
		}
	}

	remoteByName := make(map[string]vcenter.VMRecord, len(remote))
	for _, rec := range remote {
		remoteByName[rec.Name] = rec
	}

	result := &ImportResult{}
	for _, name := range req.Selected {
		rec, ok := remoteByName[name]
		if !ok {
			result.Errors.Addf(name, "not present in fetched inventory")
			continue
		}

		key := e.normalizer.Normalize(rec.Name)
		if existing, matched := localByKey[key]; matched {
			if !req.UpdateExisting {
				result.Skipped++
				continue
			}
			err := e.inTransaction(ctx, func(txCtx context.Context) error {
				return e.updateRecord(txCtx, &existing, rec, req.SourceServer)
			})
			if err != nil {
				zap.S().Named("reconcile").Warnf("updating %q: %v", rec.Name, err)
				result.Errors.Add(rec.Name, err)
				continue
			}
			localByKey[key] = existing
			result.Updated++
			continue
		}

		var created *model.VirtualMachine
		err := e.inTransaction(ctx, func(txCtx context.Context) error {
			var err error
			created, err = e.createRecord(txCtx, rec, req)
			return err
		})
		if err != nil {
			zap.S().Named("reconcile").Warnf("importing %q: %v", rec.Name, err)
			result.Errors.Add(rec.Name, err)
			continue
		}
		// a later selection of the same key must not create twice
		localByKey[key] = *created
		result.Created++
	}

	return result, nil
}

func (e *Engine) createRecord(ctx context.Context, rec vcenter.VMRecord, req ImportRequest) (*model.VirtualMachine, error) {
	name := rec.Name
	if e.opts.NormalizeNames {
		name = e.normalizer.Normalize(rec.Name)
	}

	vm := &model.VirtualMachine{
		Name:       name,
		Status:     statusFor(rec.PowerState),
		VCPUs:      rec.VCPUs,
		MemoryMB:   rec.MemoryMB,
		DiskGB:     rec.DiskGB,
		Comments:   provenance(req.SourceServer),
		Interfaces: localInterfaces(rec.Interfaces),
	}

	clusterName := req.TargetCluster
	if clusterName == "" {
		clusterName = rec.Cluster
	}
	if clusterName != "" {
		cluster, err := e.store.Cluster().FindOrCreate(ctx, clusterName)
		if err != nil {
			return nil, fmt.Errorf("resolving cluster %q: %w", clusterName, err)
		}
		vm.ClusterID = &cluster.ID
	}

	if tag := e.defaultTag(ctx); tag != nil {
		vm.Tags = []model.Tag{*tag}
	}
	if role := e.defaultRole(ctx); role != nil {
		vm.RoleID = &role.ID
	}
	if platform := e.platformFor(ctx, rec.GuestOS); platform != nil {
		vm.PlatformID = &platform.ID
	}

	created, err := e.store.VirtualMachine().Create(ctx, vm)
	if err != nil {
		return nil, err
	}

	if err := e.assignPrimaryIP(ctx, created, rec.PrimaryIP); err != nil {
		return nil, fmt.Errorf("assigning primary IP: %w", err)
	}
	return created, nil
}

// updateRecord overwrites sizing and status, fills role/platform only when
// unset, refreshes the interface inventory, attaches the default tag and
// updates the primary IP. Shared by update-existing import and bulk sync.
func (e *Engine) updateRecord(ctx context.Context, vm *model.VirtualMachine, rec vcenter.VMRecord, server string) error {
	vm.VCPUs = rec.VCPUs
	vm.MemoryMB = rec.MemoryMB
	vm.DiskGB = rec.DiskGB
	vm.Status = statusFor(rec.PowerState)
	vm.Comments = provenance(server)
	fields := []string{"VCPUs", "MemoryMB", "DiskGB", "Status", "Comments"}

	if vm.RoleID == nil {
		if role := e.defaultRole(ctx); role != nil {
			vm.RoleID = &role.ID
			fields = append(fields, "RoleID")
		}
	}
	if vm.PlatformID == nil {
		if platform := e.platformFor(ctx, rec.GuestOS); platform != nil {
			vm.PlatformID = &platform.ID
			fields = append(fields, "PlatformID")
		}
	}

	if err := e.store.VirtualMachine().Update(ctx, vm, fields); err != nil {
		return err
	}

	interfaces := localInterfaces(rec.Interfaces)
	if err := e.store.VirtualMachine().ReplaceInterfaces(ctx, vm.ID, interfaces); err != nil {
		return fmt.Errorf("replacing interfaces: %w", err)
	}
	vm.Interfaces = interfaces

	if tag := e.defaultTag(ctx); tag != nil {
		if err := e.store.VirtualMachine().AddTag(ctx, vm, tag); err != nil {
			return fmt.Errorf("attaching tag: %w", err)
		}
	}

	return e.assignPrimaryIP(ctx, vm, rec.PrimaryIP)
}

func (e *Engine) defaultTag(ctx context.Context) *model.Tag {
	if e.opts.DefaultTagSlug == "" {
		return nil
	}
	tag, err := e.store.Tag().GetBySlug(ctx, e.opts.DefaultTagSlug)
	if err != nil {
		logLookupMiss("tag", e.opts.DefaultTagSlug, err)
		return nil
	}
	return tag
}

func (e *Engine) defaultRole(ctx context.Context) *model.Role {
	if e.opts.DefaultRoleSlug == "" {
		return nil
	}
	role, err := e.store.Role().GetBySlug(ctx, e.opts.DefaultRoleSlug)
	if err != nil {
		logLookupMiss("role", e.opts.DefaultRoleSlug, err)
		return nil
	}
	return role
}

// platformFor resolves the guest OS to a platform through the configured
// mappings, falling back to the default platform slug.
func (e *Engine) platformFor(ctx context.Context, guestOS string) *model.Platform {
	slug := ""
	if e.opts.PlatformSlug != nil {
		slug = e.opts.PlatformSlug(guestOS)
	}
	if slug == "" {
		slug = e.opts.DefaultPlatformSlug
	}
	if slug == "" {
		return nil
	}

	platform, err := e.store.Platform().GetBySlug(ctx, slug)
	if err != nil {
		logLookupMiss("platform", slug, err)
		return nil
	}
	return platform
}

func logLookupMiss(kind, slug string, err error) {
	if errors.Is(err, store.ErrRecordNotFound) {
		zap.S().Named("reconcile").Warnf("%s %q not found, skipping", kind, slug)
		return
	}
	zap.S().Named("reconcile").Warnf("looking up %s %q: %v", kind, slug, err)
}

func statusFor(powerState string) string {
	if powerState == vcenter.PowerStateOn {
		return StatusActive
	}
	return StatusOffline
}

func provenance(server string) string {
	return fmt.Sprintf("Imported from vCenter %s on %s", server, time.Now().UTC().Format(time.RFC3339))
}
