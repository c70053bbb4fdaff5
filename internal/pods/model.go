package pods

// Pod is the slice of a Kubernetes pod a log stream needs: where it lives,
// whether it is serving, and which containers it runs.
type Pod struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Ready     bool   `json:"ready"`

	Containers []Container `json:"containers"`
}

type Container struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// ContainerNames lists the pod's containers in status order.
func (p Pod) ContainerNames() []string {
	names := make([]string, 0, len(p.Containers))
	for _, c := range p.Containers {
		names = append(names, c.Name)
	}
	return names
}
