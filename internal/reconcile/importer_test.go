package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sieteunoseis/vcenter-bridge/internal/match"
	"github.com/sieteunoseis/vcenter-bridge/internal/store"
	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	s := store.NewStore(db)
	require.NoError(t, s.InitialMigration())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEngine(t *testing.T, s store.Store, opts Options) *Engine {
	t.Helper()
	return NewEngine(s, match.NewNormalizer(match.ModeExact, ""), opts)
}

func TestImportCreatesNewRecord(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{
		Name:       "web01",
		PowerState: vcenter.PowerStateOn,
		VCPUs:      2,
		MemoryMB:   4096,
		DiskGB:     40,
		Cluster:    "Cluster01",
	}}

	result, err := e.Import(context.Background(), remote, ImportRequest{
		Selected:     []string{"web01"},
		SourceServer: "vcenter.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, vm.Status)
	assert.Equal(t, 2, vm.VCPUs)
	require.NotNil(t, vm.Cluster)
	assert.Equal(t, "Cluster01", vm.Cluster.Name)
	assert.Contains(t, vm.Comments, "vcenter.example.com")
}

func TestImportPoweredOffRecordIsOffline(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{Name: "db01", PowerState: vcenter.PowerStateOff}}

	result, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"db01"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "db01")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, vm.Status)
}

func TestImportSkipsExistingWithoutUpdateFlag(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	_, err := s.VirtualMachine().Create(context.Background(), &model.VirtualMachine{Name: "web01", Status: StatusActive})
	require.NoError(t, err)

	remote := []vcenter.VMRecord{{Name: "web01", VCPUs: 4}}
	result, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, 0, vm.VCPUs)
}

func TestImportUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{DefaultTagSlug: "vcenter-import"})

	_, err := s.Tag().Create(context.Background(), &model.Tag{Name: "vCenter Import", Slug: "vcenter-import"})
	require.NoError(t, err)
	_, err = s.VirtualMachine().Create(context.Background(), &model.VirtualMachine{
		Name: "web01", Status: StatusOffline, VCPUs: 2, MemoryMB: 2048,
	})
	require.NoError(t, err)

	remote := []vcenter.VMRecord{{
		Name:       "web01",
		PowerState: vcenter.PowerStateOn,
		VCPUs:      4,
		MemoryMB:   8192,
		DiskGB:     80,
	}}

	result, err := e.Import(context.Background(), remote, ImportRequest{
		Selected:       []string{"web01"},
		UpdateExisting: true,
		SourceServer:   "vcenter.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, 4, vm.VCPUs)
	assert.Equal(t, int64(8192), vm.MemoryMB)
	assert.Equal(t, 80, vm.DiskGB)
	assert.Equal(t, StatusActive, vm.Status)
}

func TestImportNeverOverwritesAssignedRole(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{DefaultRoleSlug: "virtual-server"})

	manual, err := s.Role().Create(context.Background(), &model.Role{Name: "Database", Slug: "database"})
	require.NoError(t, err)
	_, err = s.Role().Create(context.Background(), &model.Role{Name: "Virtual Server", Slug: "virtual-server"})
	require.NoError(t, err)

	_, err = s.VirtualMachine().Create(context.Background(), &model.VirtualMachine{
		Name: "db01", Status: StatusActive, RoleID: &manual.ID,
	})
	require.NoError(t, err)

	remote := []vcenter.VMRecord{{Name: "db01", PowerState: vcenter.PowerStateOn, VCPUs: 2}}
	_, err = e.Import(context.Background(), remote, ImportRequest{Selected: []string{"db01"}, UpdateExisting: true})
	require.NoError(t, err)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "db01")
	require.NoError(t, err)
	require.NotNil(t, vm.RoleID)
	assert.Equal(t, manual.ID, *vm.RoleID)
}

func TestImportUnresolvableDefaultsAreOmitted(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{
		DefaultTagSlug:      "missing-tag",
		DefaultRoleSlug:     "missing-role",
		DefaultPlatformSlug: "missing-platform",
	})

	remote := []vcenter.VMRecord{{Name: "web01", PowerState: vcenter.PowerStateOn}}
	result, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Nil(t, vm.RoleID)
	assert.Nil(t, vm.PlatformID)
}

func TestImportPrimaryIPBoundToDefaultInterface(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{Name: "web01", PowerState: vcenter.PowerStateOn, PrimaryIP: "10.0.0.5"}}
	result, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5/32", vm.PrimaryIPv4)
	require.Len(t, vm.Interfaces, 1)
	assert.Equal(t, "eth0", vm.Interfaces[0].Name)
	require.Len(t, vm.Interfaces[0].Addresses, 1)
	assert.Equal(t, "10.0.0.5/32", vm.Interfaces[0].Addresses[0].Address)
}

func TestImportLinkLocalPrimaryIPSkipped(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{Name: "web01", PowerState: vcenter.PowerStateOn, PrimaryIP: "fe80::1"}}
	result, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Empty(t, vm.PrimaryIPv6)
	assert.Empty(t, vm.Interfaces)
}

func TestImportIPv6PrimaryIP(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{Name: "web01", PowerState: vcenter.PowerStateOn, PrimaryIP: "2001:db8::5"}}
	_, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5/128", vm.PrimaryIPv6)
	assert.Empty(t, vm.PrimaryIPv4)
}

func TestImportNormalizesNamesWhenConfigured(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, match.NewNormalizer(match.ModeHostname, ""), Options{NormalizeNames: true})

	remote := []vcenter.VMRecord{{Name: "WebServer01.example.com", PowerState: vcenter.PowerStateOn}}
	_, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"WebServer01.example.com"}})
	require.NoError(t, err)

	_, err = s.VirtualMachine().GetByName(context.Background(), "webserver01")
	require.NoError(t, err)
}

func TestImportUnknownSelectionRecordsError(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	result, err := e.Import(context.Background(), nil, ImportRequest{Selected: []string{"ghost"}})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ghost", result.Errors[0].Item)
}

func TestImportCopiesInterfaces(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s, Options{})

	remote := []vcenter.VMRecord{{
		Name:       "web01",
		PowerState: vcenter.PowerStateOn,
		PrimaryIP:  "10.0.0.5",
		Interfaces: []vcenter.InterfaceRecord{
			{Name: "VM Network", MAC: "00:50:56:aa:bb:01", Connected: true, IPAddresses: []string{"10.0.0.5", "fe80::1"}},
		},
	}}

	_, err := e.Import(context.Background(), remote, ImportRequest{Selected: []string{"web01"}})
	require.NoError(t, err)

	vm, err := s.VirtualMachine().GetByName(context.Background(), "web01")
	require.NoError(t, err)
	require.Len(t, vm.Interfaces, 1)
	assert.Equal(t, "VM Network", vm.Interfaces[0].Name)
	// link-local dropped, remaining address in CIDR form
	require.Len(t, vm.Interfaces[0].Addresses, 1)
	assert.Equal(t, "10.0.0.5/32", vm.Interfaces[0].Addresses[0].Address)
	assert.Equal(t, "10.0.0.5/32", vm.PrimaryIPv4)
}

func TestPlatformMappingTakesPrecedence(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Platform().Create(context.Background(), &model.Platform{Name: "Ubuntu", Slug: "ubuntu"})
	require.NoError(t, err)
	_, err = s.Platform().Create(context.Background(), &model.Platform{Name: "Generic", Slug: "generic"})
	require.NoError(t, err)

	e := newTestEngine(t, s, Options{
		DefaultPlatformSlug: "generic",
		PlatformSlug: func(guestOS string) string {
			if guestOS == "Ubuntu Linux (64-bit)" {
				return "ubuntu"
			}
			return ""
		},
	})

	remote := []vcenter.VMRecord{
		{Name: "u01", GuestOS: "Ubuntu Linux (64-bit)", PowerState: vcenter.PowerStateOn},
		{Name: "w01", GuestOS: "Microsoft Windows Server 2022", PowerState: vcenter.PowerStateOn},
	}
	_, err = e.Import(context.Background(), remote, ImportRequest{Selected: []string{"u01", "w01"}})
	require.NoError(t, err)

	u, err := s.VirtualMachine().GetByName(context.Background(), "u01")
	require.NoError(t, err)
	require.NotNil(t, u.PlatformID)

	w, err := s.VirtualMachine().GetByName(context.Background(), "w01")
	require.NoError(t, err)
	require.NotNil(t, w.PlatformID)
	assert.NotEqual(t, *u.PlatformID, *w.PlatformID)
}

// brokenInterfaceVMStore fails interface provisioning so a record's IP
// assignment errors after its create succeeded.
type brokenInterfaceVMStore struct {
	store.VirtualMachine
}

func (b *brokenInterfaceVMStore) EnsureInterface(ctx context.Context, vmID uint, name string) (*model.Interface, error) {
	return nil, errors.New("interface provisioning unavailable")
}

type brokenInterfaceStore struct {
	store.Store
}

func (b *brokenInterfaceStore) VirtualMachine() store.VirtualMachine {
	return &brokenInterfaceVMStore{b.Store.VirtualMachine()}
}

func TestImportRollsBackRecordOnPrimaryIPFailure(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, &brokenInterfaceStore{Store: s}, Options{})

	remote := []vcenter.VMRecord{{
		Name:       "web01",
		PowerState: vcenter.PowerStateOn,
		PrimaryIP:  "10.0.0.5",
	}}

	result, err := e.Import(context.Background(), remote, ImportRequest{
		Selected:     []string{"web01"},
		SourceServer: "vcenter.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "interface provisioning unavailable")

	// the rolled-back create must leave no record behind
	_, err = s.VirtualMachine().GetByName(context.Background(), "web01")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestImportFailedRecordDoesNotAbortBatch(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, &brokenInterfaceStore{Store: s}, Options{})

	remote := []vcenter.VMRecord{
		{Name: "bad01", PowerState: vcenter.PowerStateOn, PrimaryIP: "10.0.0.5"},
		{Name: "good01", PowerState: vcenter.PowerStateOn},
	}

	result, err := e.Import(context.Background(), remote, ImportRequest{
		Selected: []string{"bad01", "good01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)

	_, err = s.VirtualMachine().GetByName(context.Background(), "good01")
	require.NoError(t, err)
}
