package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/logsieve/internal/clf"
)

// SortFields lists the accepted --sort keys in cycle order.
var SortFields = []string{"line", "ip", "date", "method", "resource", "status", "size", "referer", "agent"}

// ValidSortField reports whether name is a sort key.
func ValidSortField(name string) error {
	for _, f := range SortFields {
		if f == name {
			return nil
		}
	}
	return fmt.Errorf("unknown sort field %q (valid: %s)", name, strings.Join(SortFields, ", "))
}

// Sort orders entries in place by field. The sort is stable so equal keys
// keep their line order. Dates sort by instant; unparseable dates go first.
// Sizes of "-" sort as zero.
func Sort(entries []clf.Entry, field string, desc bool) error {
	if err := ValidSortField(field); err != nil {
		return err
	}
	less := lessFunc(field)
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
	return nil
}

func lessFunc(field string) func(a, b clf.Entry) bool {
	switch field {
	case "ip":
		return func(a, b clf.Entry) bool { return ipKey(a.IP) < ipKey(b.IP) }
	case "date":
		return func(a, b clf.Entry) bool { return a.Timestamp.Before(b.Timestamp) }
	case "method":
		return func(a, b clf.Entry) bool { return a.Method < b.Method }
	case "resource":
		return func(a, b clf.Entry) bool { return a.Resource < b.Resource }
	case "status":
		return func(a, b clf.Entry) bool { return a.Status < b.Status }
	case "size":
		return func(a, b clf.Entry) bool { return a.Bytes() < b.Bytes() }
	case "referer":
		return func(a, b clf.Entry) bool { return a.Referer < b.Referer }
	case "agent":
		return func(a, b clf.Entry) bool { return a.Agent < b.Agent }
	default:
		return func(a, b clf.Entry) bool { return a.Line < b.Line }
	}
}

// ipKey packs a dotted quad into a number so 10.0.0.9 sorts before 10.0.0.10.
// Octets above 255 are possible in matched lines and still order correctly.
func ipKey(ip string) uint64 {
	var key, octet uint64
	for i := 0; i < len(ip); i++ {
		if ip[i] == '.' {
			key = key<<10 | octet
			octet = 0
			continue
		}
		octet = octet*10 + uint64(ip[i]-'0')
	}
	return key<<10 | octet
}
