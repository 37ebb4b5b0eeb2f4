package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sieteunoseis/vcenter-bridge/internal/store"
	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
)

var _ = Describe("virtual machine store", Ordered, func() {
	AfterEach(func() {
		gormdb.Exec("DELETE FROM ip_addresses;")
		gormdb.Exec("DELETE FROM interfaces;")
		gormdb.Exec("DELETE FROM virtual_machines;")
		gormdb.Exec("DELETE FROM clusters;")
	})

	Context("Create", func() {
		It("persists a record with its interfaces and addresses", func() {
			vm := &model.VirtualMachine{
				Name:     "web01",
				Status:   "active",
				VCPUs:    2,
				MemoryMB: 4096,
				DiskGB:   40,
				Interfaces: []model.Interface{
					{
						Name:       "eth0",
						MACAddress: "00:50:56:aa:bb:01",
						Enabled:    true,
						Addresses:  []model.IPAddress{{Address: "10.0.0.5/32"}},
					},
				},
				PrimaryIPv4: "10.0.0.5/32",
			}

			created, err := s.VirtualMachine().Create(context.TODO(), vm)
			Expect(err).To(BeNil())
			Expect(created.ID).NotTo(BeZero())

			got, err := s.VirtualMachine().GetByName(context.TODO(), "web01")
			Expect(err).To(BeNil())
			Expect(got.VCPUs).To(Equal(2))
			Expect(got.Interfaces).To(HaveLen(1))
			Expect(got.Interfaces[0].Addresses).To(HaveLen(1))
			Expect(got.Interfaces[0].Addresses[0].Address).To(Equal("10.0.0.5/32"))
		})

		It("rejects a duplicate name", func() {
			_, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "web01", Status: "active"})
			Expect(err).To(BeNil())

			_, err = s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "web01", Status: "active"})
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})
	})

	Context("GetByName", func() {
		It("returns ErrRecordNotFound for an unknown name", func() {
			_, err := s.VirtualMachine().GetByName(context.TODO(), "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("Update", func() {
		It("updates only the selected fields", func() {
			vm, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{
				Name: "db01", Status: "active", VCPUs: 2, MemoryMB: 4096,
			})
			Expect(err).To(BeNil())

			vm.VCPUs = 4
			vm.MemoryMB = 8192
			err = s.VirtualMachine().Update(context.TODO(), vm, []string{"VCPUs"})
			Expect(err).To(BeNil())

			got, err := s.VirtualMachine().GetByName(context.TODO(), "db01")
			Expect(err).To(BeNil())
			Expect(got.VCPUs).To(Equal(4))
			Expect(got.MemoryMB).To(Equal(int64(4096)))
		})

		It("is a no-op when no fields are selected", func() {
			vm, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "db02", Status: "active"})
			Expect(err).To(BeNil())

			Expect(s.VirtualMachine().Update(context.TODO(), vm, nil)).To(Succeed())
		})
	})

	Context("ReplaceInterfaces", func() {
		It("swaps the interface set", func() {
			vm, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{
				Name:   "app01",
				Status: "active",
				Interfaces: []model.Interface{
					{Name: "eth0", Addresses: []model.IPAddress{{Address: "10.0.0.1/32"}}},
				},
			})
			Expect(err).To(BeNil())

			err = s.VirtualMachine().ReplaceInterfaces(context.TODO(), vm.ID, []model.Interface{
				{Name: "VM Network", Enabled: true, Addresses: []model.IPAddress{{Address: "10.0.0.2/32"}, {Address: "10.0.0.3/32"}}},
			})
			Expect(err).To(BeNil())

			got, err := s.VirtualMachine().GetByName(context.TODO(), "app01")
			Expect(err).To(BeNil())
			Expect(got.Interfaces).To(HaveLen(1))
			Expect(got.Interfaces[0].Name).To(Equal("VM Network"))
			Expect(got.Interfaces[0].Addresses).To(HaveLen(2))
		})
	})

	Context("EnsureAddress", func() {
		It("creates the address on first bind and reuses it afterwards", func() {
			vm, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{
				Name:       "net01",
				Status:     "active",
				Interfaces: []model.Interface{{Name: "eth0", Enabled: true}},
			})
			Expect(err).To(BeNil())

			first, err := s.VirtualMachine().EnsureAddress(context.TODO(), vm.Interfaces[0].ID, "10.0.0.5/32")
			Expect(err).To(BeNil())
			Expect(first.ID).NotTo(BeZero())

			second, err := s.VirtualMachine().EnsureAddress(context.TODO(), vm.Interfaces[0].ID, "10.0.0.5/32")
			Expect(err).To(BeNil())
			Expect(second.ID).To(Equal(first.ID))

			var count int64
			Expect(gormdb.Model(&model.IPAddress{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("rebinds an address held by another interface of the same record", func() {
			vm, err := s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{
				Name:   "net02",
				Status: "active",
				Interfaces: []model.Interface{
					{Name: "eth0", Enabled: true},
					{Name: "eth1", Enabled: true},
				},
			})
			Expect(err).To(BeNil())

			first, err := s.VirtualMachine().EnsureAddress(context.TODO(), vm.Interfaces[0].ID, "10.0.0.9/32")
			Expect(err).To(BeNil())

			moved, err := s.VirtualMachine().EnsureAddress(context.TODO(), vm.Interfaces[1].ID, "10.0.0.9/32")
			Expect(err).To(BeNil())
			Expect(moved.ID).To(Equal(first.ID))
			Expect(moved.InterfaceID).To(Equal(vm.Interfaces[1].ID))

			var count int64
			Expect(gormdb.Model(&model.IPAddress{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Context("List", func() {
		It("returns records ordered by name with associations", func() {
			cluster, err := s.Cluster().FindOrCreate(context.TODO(), "Cluster01")
			Expect(err).To(BeNil())

			_, err = s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "zeta", Status: "active"})
			Expect(err).To(BeNil())
			_, err = s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "alpha", Status: "active", ClusterID: &cluster.ID})
			Expect(err).To(BeNil())

			vms, err := s.VirtualMachine().List(context.TODO())
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(2))
			Expect(vms[0].Name).To(Equal("alpha"))
			Expect(vms[0].Cluster).NotTo(BeNil())
			Expect(vms[0].Cluster.Name).To(Equal("Cluster01"))
			Expect(vms[1].Name).To(Equal("zeta"))
		})
	})

	Context("Count", func() {
		It("counts records", func() {
			count, err := s.VirtualMachine().Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(0)))

			_, err = s.VirtualMachine().Create(context.TODO(), &model.VirtualMachine{Name: "one", Status: "active"})
			Expect(err).To(BeNil())

			count, err = s.VirtualMachine().Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})
	})
})

var _ = Describe("cluster store", Ordered, func() {
	AfterEach(func() {
		gormdb.Exec("DELETE FROM clusters;")
	})

	Context("FindOrCreate", func() {
		It("creates on first call and reuses afterwards", func() {
			first, err := s.Cluster().FindOrCreate(context.TODO(), "Cluster01")
			Expect(err).To(BeNil())
			Expect(first.ID).NotTo(BeZero())

			second, err := s.Cluster().FindOrCreate(context.TODO(), "Cluster01")
			Expect(err).To(BeNil())
			Expect(second.ID).To(Equal(first.ID))

			clusters, err := s.Cluster().List(context.TODO())
			Expect(err).To(BeNil())
			Expect(clusters).To(HaveLen(1))
		})
	})
})

var _ = Describe("lookup stores", Ordered, func() {
	AfterEach(func() {
		gormdb.Exec("DELETE FROM tags;")
		gormdb.Exec("DELETE FROM platforms;")
	})

	Context("GetBySlug", func() {
		It("resolves an existing slug", func() {
			_, err := s.Tag().Create(context.TODO(), &model.Tag{Name: "vCenter Import", Slug: "vcenter-import"})
			Expect(err).To(BeNil())

			tag, err := s.Tag().GetBySlug(context.TODO(), "vcenter-import")
			Expect(err).To(BeNil())
			Expect(tag.Name).To(Equal("vCenter Import"))
		})

		It("returns ErrRecordNotFound for an unknown slug", func() {
			_, err := s.Platform().GetBySlug(context.TODO(), "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
