package reconcile

import (
	"github.com/sieteunoseis/vcenter-bridge/internal/match"
	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
)

// Pair is a remote record and the local record it matched by canonical key.
type Pair struct {
	Key            string               `json:"key"`
	Remote         vcenter.VMRecord     `json:"remote"`
	Local          model.VirtualMachine `json:"local"`
	HasDifferences bool                 `json:"has_differences"`
}

// Comparison partitions the union of both inventories: every record lands in
// exactly one of the three buckets.
type Comparison struct {
	InBoth     []Pair                 `json:"in_both"`
	OnlyRemote []vcenter.VMRecord     `json:"only_remote"`
	OnlyLocal  []model.VirtualMachine `json:"only_local"`
}

// compareRecords performs the set algebra on canonical keys, not raw names,
// so records differing only by domain suffix or formatting under the active
// mode are unified. Duplicate keys within one side keep the last-seen record.
func compareRecords(remote []vcenter.VMRecord, local []model.VirtualMachine, n *match.Normalizer) *Comparison {
	remoteByKey, remoteKeys := remoteKeyMap(remote, n)
	localByKey := make(map[string]model.VirtualMachine, len(local))
	for _, vm := range local {
		if key := n.Normalize(vm.Name); key != "" {
			localByKey[key] = vm
		}
	}

	cmp := &Comparison{}
	for _, key := range remoteKeys {
		rec := remoteByKey[key]
		vm, ok := localByKey[key]
		if !ok {
			cmp.OnlyRemote = append(cmp.OnlyRemote, rec)
			continue
		}
		cmp.InBoth = append(cmp.InBoth, Pair{
			Key:            key,
			Remote:         rec,
			Local:          vm,
			HasDifferences: hasDifferences(rec, vm),
		})
		delete(localByKey, key)
	}

	for _, vm := range local {
		key := n.Normalize(vm.Name)
		if _, ok := localByKey[key]; ok {
			cmp.OnlyLocal = append(cmp.OnlyLocal, vm)
			delete(localByKey, key)
		}
	}

	return cmp
}

// remoteKeyMap builds the canonical-key map for the remote side, keeping key
// order stable for deterministic output.
func remoteKeyMap(remote []vcenter.VMRecord, n *match.Normalizer) (map[string]vcenter.VMRecord, []string) {
	byKey := make(map[string]vcenter.VMRecord, len(remote))
	keys := make([]string, 0, len(remote))
	for _, rec := range remote {
		key := n.Normalize(rec.Name)
		if key == "" {
			continue
		}
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = rec
	}
	return byKey, keys
}

// hasDifferences compares sizing only. Status and the remaining fields are
// applied by sync but never flag a pair as different.
func hasDifferences(rec vcenter.VMRecord, vm model.VirtualMachine) bool {
	return rec.VCPUs != vm.VCPUs ||
		rec.MemoryMB != vm.MemoryMB ||
		rec.DiskGB != vm.DiskGB
}
