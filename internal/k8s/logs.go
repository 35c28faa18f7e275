package k8s

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkloadKind identifies what a Target's name refers to.
type WorkloadKind string

const (
	KindPod         WorkloadKind = "Pod"
	KindDeployment  WorkloadKind = "Deployment"
	KindStatefulSet WorkloadKind = "StatefulSet"
	KindDaemonSet   WorkloadKind = "DaemonSet"
)

// LogOptions narrows the log stream.
type LogOptions struct {
	// TailLines keeps only the last N lines when > 0.
	TailLines int64
	// SinceSeconds keeps only lines newer than this when > 0.
	SinceSeconds int64
	// Previous reads the logs of the last terminated container instance.
	Previous bool
}

// PodLogs opens the log stream for t. The caller closes the returned reader.
func PodLogs(ctx context.Context, c *Client, t Target, opts LogOptions) (io.ReadCloser, error) {
	ns := t.Namespace
	if ns == "" {
		ns = c.NS
	}

	podName := t.Name
	if t.Kind != "" && t.Kind != KindPod {
		var err error
		podName, err = resolveWorkloadPod(ctx, c, ns, t.Kind, t.Name)
		if err != nil {
			return nil, err
		}
	}

	pod, err := c.CS.CoreV1().Pods(ns).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get pod %s/%s: %w", ns, podName, err)
	}
	container, err := PickContainer(pod.Spec.Containers, t.Container)
	if err != nil {
		return nil, fmt.Errorf("pod %s/%s: %w", ns, podName, err)
	}

	logOpts := &corev1.PodLogOptions{Container: container, Previous: opts.Previous}
	if opts.TailLines > 0 {
		logOpts.TailLines = &opts.TailLines
	}
	if opts.SinceSeconds > 0 {
		logOpts.SinceSeconds = &opts.SinceSeconds
	}

	stream, err := c.CS.CoreV1().Pods(ns).GetLogs(podName, logOpts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open log stream for %s/%s: %w", podName, container, err)
	}
	return stream, nil
}

// webServerHints are matched against container names and images when no
// container is named and the pod has several.
var webServerHints = []string{"httpd", "apache"}

// PickContainer returns want if the pod has it. With want empty it returns
// the only container, or the first one that looks like an Apache server.
func PickContainer(containers []corev1.Container, want string) (string, error) {
	if len(containers) == 0 {
		return "", fmt.Errorf("pod has no containers")
	}
	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name)
	}
	if want != "" {
		for _, n := range names {
			if n == want {
				return n, nil
			}
		}
		return "", fmt.Errorf("container %q not found (have: %s)", want, strings.Join(names, ", "))
	}
	if len(containers) == 1 {
		return containers[0].Name, nil
	}
	for _, c := range containers {
		for _, h := range webServerHints {
			if strings.Contains(c.Name, h) || strings.Contains(c.Image, h) {
				return c.Name, nil
			}
		}
	}
	return "", fmt.Errorf("pod has %d containers, name one of: %s", len(names), strings.Join(names, ", "))
}

// resolveWorkloadPod picks the first running pod, by name, matched by the
// workload's selector.
func resolveWorkloadPod(ctx context.Context, c *Client, ns string, kind WorkloadKind, name string) (string, error) {
	var sel *metav1.LabelSelector
	switch kind {
	case KindDeployment:
		d, err := c.CS.AppsV1().Deployments(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get deployment %s: %w", name, err)
		}
		sel = d.Spec.Selector
	case KindStatefulSet:
		s, err := c.CS.AppsV1().StatefulSets(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get statefulset %s: %w", name, err)
		}
		sel = s.Spec.Selector
	case KindDaemonSet:
		d, err := c.CS.AppsV1().DaemonSets(ns).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get daemonset %s: %w", name, err)
		}
		sel = d.Spec.Selector
	default:
		return "", fmt.Errorf("unsupported workload kind: %s", kind)
	}

	selector, err := metav1.LabelSelectorAsSelector(sel)
	if err != nil {
		return "", fmt.Errorf("%s %s selector: %w", strings.ToLower(string(kind)), name, err)
	}
	pods, err := c.CS.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return "", fmt.Errorf("list pods for %s: %w", name, err)
	}

	var running []string
	for _, p := range pods.Items {
		if p.Status.Phase == corev1.PodRunning {
			running = append(running, p.Name)
		}
	}
	if len(running) == 0 {
		return "", fmt.Errorf("no running pods for %s %s", strings.ToLower(string(kind)), name)
	}
	sort.Strings(running)
	return running[0], nil
}
