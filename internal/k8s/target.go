package k8s

import (
	"fmt"
	"strings"
)

// Scheme prefixes pod log locations.
const Scheme = "k8s://"

// Target names a container log: k8s://namespace/pod[/container]. The pod
// segment may also be a workload reference (deploy/NAME, sts/NAME,
// ds/NAME), resolved to one of its running pods.
type Target struct {
	Namespace string
	Kind      WorkloadKind
	Name      string
	Container string
}

// IsTarget reports whether s is a k8s:// location.
func IsTarget(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

var kindAliases = map[string]WorkloadKind{
	"deploy":      KindDeployment,
	"deployment":  KindDeployment,
	"sts":         KindStatefulSet,
	"statefulset": KindStatefulSet,
	"ds":          KindDaemonSet,
	"daemonset":   KindDaemonSet,
}

// ParseTarget parses a k8s:// location.
func ParseTarget(raw string) (Target, error) {
	if !IsTarget(raw) {
		return Target{}, fmt.Errorf("not a k8s location: %q", raw)
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(raw, Scheme), "/"), "/")
	for _, p := range parts {
		if p == "" {
			return Target{}, fmt.Errorf("empty segment in %q", raw)
		}
	}
	if len(parts) < 2 {
		return Target{}, fmt.Errorf("expected k8s://namespace/pod[/container], got %q", raw)
	}

	t := Target{Namespace: parts[0], Kind: KindPod}
	rest := parts[1:]
	if kind, ok := kindAliases[strings.ToLower(rest[0])]; ok && len(rest) >= 2 {
		t.Kind = kind
		rest = rest[1:]
	}
	t.Name = rest[0]
	switch len(rest) {
	case 1:
	case 2:
		t.Container = rest[1]
	default:
		return Target{}, fmt.Errorf("too many segments in %q", raw)
	}
	return t, nil
}

func (t Target) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(t.Namespace)
	b.WriteByte('/')
	if alias := shortKind(t.Kind); alias != "" {
		b.WriteString(alias)
		b.WriteByte('/')
	}
	b.WriteString(t.Name)
	if t.Container != "" {
		b.WriteByte('/')
		b.WriteString(t.Container)
	}
	return b.String()
}

func shortKind(k WorkloadKind) string {
	switch k {
	case KindDeployment:
		return "deploy"
	case KindStatefulSet:
		return "sts"
	case KindDaemonSet:
		return "ds"
	}
	return ""
}
