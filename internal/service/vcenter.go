package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sieteunoseis/vcenter-bridge/internal/batch"
	"github.com/sieteunoseis/vcenter-bridge/internal/config"
	"github.com/sieteunoseis/vcenter-bridge/internal/invcache"
	"github.com/sieteunoseis/vcenter-bridge/internal/match"
	"github.com/sieteunoseis/vcenter-bridge/internal/reconcile"
	"github.com/sieteunoseis/vcenter-bridge/internal/store"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
	"github.com/sieteunoseis/vcenter-bridge/pkg/metrics"
	"go.uber.org/zap"
)

// InventoryClient is the slice of the vCenter client the service depends on.
type InventoryClient interface {
	FetchAll(ctx context.Context) ([]vcenter.VMRecord, batch.Errors, error)
	ListClusters(ctx context.Context) ([]vcenter.ClusterInfo, error)
	ListDatacenters(ctx context.Context) ([]vcenter.DatacenterInfo, error)
	TestConnection(ctx context.Context) error
}

// ClientFactory builds a client for one server with the supplied credentials.
type ClientFactory func(server, username, password string, verifyTLS bool) InventoryClient

// Credentials carries one connect request's login data. VerifyTLS overrides
// the configured default when set.
type Credentials struct {
	Username  string
	Password  string
	VerifyTLS *bool
}

type VCenterService struct {
	cfg       *config.Config
	store     store.Store
	cache     *invcache.InventoryCache
	newClient ClientFactory
	platforms *PlatformMapper
}

func NewVCenterService(cfg *config.Config, s store.Store, cache *invcache.InventoryCache, factory ClientFactory) *VCenterService {
	if factory == nil {
		factory = func(server, username, password string, verifyTLS bool) InventoryClient {
			return vcenter.NewClient(server, username, password, verifyTLS, cfg.VCenter.ConnectTimeout)
		}
	}
	return &VCenterService{
		cfg:       cfg,
		store:     s,
		cache:     cache,
		newClient: factory,
		platforms: NewPlatformMapper(cfg.VCenter.PlatformMappings),
	}
}

type ConnectResult struct {
	Server    string       `json:"server"`
	Count     int          `json:"count"`
	FetchedAt time.Time    `json:"fetched_at"`
	Failed    batch.Errors `json:"failed,omitempty"`
}

// Connect fetches the server's full inventory and caches it, overwriting any
// previous entry. Two concurrent connects for the same server race on the
// cache write; last write wins.
func (s *VCenterService) Connect(ctx context.Context, server string, creds Credentials) (*ConnectResult, error) {
	client, err := s.client(server, creds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, failed, err := client.FetchAll(ctx)
	if err != nil {
		metrics.ObserveFetchDuration(server, "error", time.Since(start))
		return nil, s.mapClientError(server, err)
	}
	metrics.ObserveFetchDuration(server, "success", time.Since(start))
	metrics.SetFetchedVms(server, len(records))

	if len(failed) > 0 {
		zap.S().Named("service").Warnf("fetch from %s: %v", server, failed.Summary(3))
	}

	entry := s.cache.Put(server, records)
	zap.S().Named("service").Infof("cached %d records from %s", entry.Count, server)

	return &ConnectResult{
		Server:    server,
		Count:     entry.Count,
		FetchedAt: entry.FetchedAt,
		Failed:    failed,
	}, nil
}

// Refresh drops the cached inventory so the next connect fetches fresh data.
func (s *VCenterService) Refresh(server string) {
	s.cache.Invalidate(server)
	zap.S().Named("service").Infof("invalidated cached inventory for %s", server)
}

// TestConnection verifies endpoint and credentials without fetching.
func (s *VCenterService) TestConnection(ctx context.Context, server string, creds Credentials) error {
	client, err := s.client(server, creds)
	if err != nil {
		return err
	}
	if err := client.TestConnection(ctx); err != nil {
		return s.mapClientError(server, err)
	}
	return nil
}

// Inventory returns the cached inventory for server.
func (s *VCenterService) Inventory(server string) (*invcache.Entry, error) {
	entry := s.cache.Get(server)
	if entry == nil {
		return nil, NewErrInventoryNotCached(server)
	}
	return entry, nil
}

// Compare classifies the cached inventory against the asset database.
func (s *VCenterService) Compare(ctx context.Context, server string) (*reconcile.Comparison, error) {
	entry, err := s.Inventory(server)
	if err != nil {
		return nil, err
	}
	return s.engine().Compare(ctx, entry.Records)
}

// Import creates or updates asset records for the selected cached records.
func (s *VCenterService) Import(ctx context.Context, server string, selected []string, targetCluster string, updateExisting bool) (*reconcile.ImportResult, error) {
	entry, err := s.Inventory(server)
	if err != nil {
		return nil, err
	}

	result, err := s.engine().Import(ctx, entry.Records, reconcile.ImportRequest{
		Selected:       selected,
		TargetCluster:  targetCluster,
		UpdateExisting: updateExisting,
		SourceServer:   server,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncreaseReconcileOps("import", "created", result.Created)
	metrics.IncreaseReconcileOps("import", "updated", result.Updated)
	metrics.IncreaseReconcileOps("import", "skipped", result.Skipped)
	metrics.IncreaseReconcileOps("import", "error", len(result.Errors))
	return result, nil
}

// SyncDifferences updates every matched record whose sizing differs from the
// cached remote inventory.
func (s *VCenterService) SyncDifferences(ctx context.Context, server string) (*reconcile.SyncResult, error) {
	entry, err := s.Inventory(server)
	if err != nil {
		return nil, err
	}

	result, err := s.engine().SyncDifferences(ctx, entry.Records, server)
	if err != nil {
		return nil, err
	}

	metrics.IncreaseReconcileOps("sync", "updated", result.Updated)
	metrics.IncreaseReconcileOps("sync", "error", len(result.Errors))
	return result, nil
}

// ListClusters enumerates the server's clusters over a fresh session.
func (s *VCenterService) ListClusters(ctx context.Context, server string, creds Credentials) ([]vcenter.ClusterInfo, error) {
	client, err := s.client(server, creds)
	if err != nil {
		return nil, err
	}
	clusters, err := client.ListClusters(ctx)
	if err != nil {
		return nil, s.mapClientError(server, err)
	}
	return clusters, nil
}

// ListDatacenters enumerates the server's datacenters over a fresh session.
func (s *VCenterService) ListDatacenters(ctx context.Context, server string, creds Credentials) ([]vcenter.DatacenterInfo, error) {
	client, err := s.client(server, creds)
	if err != nil {
		return nil, err
	}
	datacenters, err := client.ListDatacenters(ctx)
	if err != nil {
		return nil, s.mapClientError(server, err)
	}
	return datacenters, nil
}

type ServerStatus struct {
	Server    string     `json:"server"`
	Cached    bool       `json:"cached"`
	Count     int        `json:"count"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

type Status struct {
	Servers      []ServerStatus `json:"servers"`
	AssetRecords int64          `json:"asset_records"`
}

// Status reports the cache state of every configured server plus the asset
// database record count.
func (s *VCenterService) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.VirtualMachine().Count(ctx)
	if err != nil {
		return nil, err
	}

	servers := slices.Clone(s.cfg.VCenter.Servers)
	for _, cached := range s.cache.Servers() {
		if !slices.Contains(servers, cached) {
			servers = append(servers, cached)
		}
	}
	slices.Sort(servers)

	status := &Status{AssetRecords: count}
	for _, server := range servers {
		ss := ServerStatus{Server: server}
		if entry := s.cache.Get(server); entry != nil {
			ss.Cached = true
			ss.Count = entry.Count
			fetchedAt := entry.FetchedAt
			ss.FetchedAt = &fetchedAt
		}
		status.Servers = append(status.Servers, ss)
	}
	return status, nil
}

type UIConfig struct {
	Servers    []string `json:"servers"`
	MFAEnabled bool     `json:"mfa_enabled"`
	MFALabel   string   `json:"mfa_label,omitempty"`
	MFAMessage string   `json:"mfa_message,omitempty"`
	MatchMode  string   `json:"match_mode"`
}

// UIConfig exposes the dashboard-facing configuration hints.
func (s *VCenterService) UIConfig() *UIConfig {
	return &UIConfig{
		Servers:    s.cfg.VCenter.Servers,
		MFAEnabled: s.cfg.VCenter.MFAEnabled,
		MFALabel:   s.cfg.VCenter.MFALabel,
		MFAMessage: s.cfg.VCenter.MFAMessage,
		MatchMode:  string(match.ParseMode(s.cfg.VCenter.MatchMode)),
	}
}

// Servers lists the configured candidate servers.
func (s *VCenterService) Servers() []string {
	return s.cfg.VCenter.Servers
}

func (s *VCenterService) client(server string, creds Credentials) (InventoryClient, error) {
	if len(s.cfg.VCenter.Servers) > 0 && !slices.Contains(s.cfg.VCenter.Servers, server) {
		return nil, NewErrUnknownServer(server)
	}

	verifyTLS := s.cfg.VCenter.VerifyTLS
	if creds.VerifyTLS != nil {
		verifyTLS = *creds.VerifyTLS
	}
	return s.newClient(server, creds.Username, creds.Password, verifyTLS), nil
}

func (s *VCenterService) mapClientError(server string, err error) error {
	if errors.Is(err, vcenter.ErrInvalidCredentials) {
		return NewErrInvalidCredentials(server)
	}
	return NewErrConnectionFailed(server, err)
}

// engine builds a reconciliation engine with the process-wide matching
// configuration. Constructed per operation so every call site applies the
// same mode and pattern.
func (s *VCenterService) engine() *reconcile.Engine {
	normalizer := match.NewNormalizer(
		match.ParseMode(s.cfg.VCenter.MatchMode),
		s.cfg.VCenter.MatchPattern,
	)
	return reconcile.NewEngine(s.store, normalizer, reconcile.Options{
		NormalizeNames:      s.cfg.VCenter.NormalizeImportedNames,
		DefaultTagSlug:      s.cfg.VCenter.DefaultTagSlug,
		DefaultRoleSlug:     s.cfg.VCenter.DefaultRoleSlug,
		DefaultPlatformSlug: s.cfg.VCenter.DefaultPlatformSlug,
		PlatformSlug:        s.platforms.SlugFor,
	})
}
