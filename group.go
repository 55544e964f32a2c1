package fleetview

import "strings"

// SplitByTag partitions the snapshot's instances by name prefix. Both halves
// are ordered by name.
//
// Demos that run two flavours of worker side by side (for example a plain and
// a deliberately slowed tile server) tag one flavour's names at start time and
// use SplitByTag to route traffic to each group separately.
func SplitByTag(snap Snapshot, tag string) (tagged, rest []Instance) {
	for _, inst := range snap.Sorted() {
		if tag != "" && strings.HasPrefix(inst.Name, tag) {
			tagged = append(tagged, inst)
			continue
		}
		rest = append(rest, inst)
	}
	return tagged, rest
}

// Hosts returns the external IPs of instances that have one, in order.
func Hosts(instances []Instance) []string {
	hosts := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.ExternalIP != "" {
			hosts = append(hosts, inst.ExternalIP)
		}
	}
	return hosts
}
