package scanning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ullaakut/nmap/v3"
)

const (
	hostStateUp    = "up"
	portStateOpen  = "open"
	unknownService = "unknown"
)

// describeHost renders the detail text for a host found in the engine output
// and reports whether the probe succeeded.
func describeHost(host *nmap.Host, address string, mode Mode) (bool, string) {
	state := host.Status.State
	up := state == hostStateUp

	lines := []string{
		"Host: " + address,
		"State: " + state,
	}

	if !up {
		return false, strings.Join(lines, "\n")
	}

	if names := hostnames(host); len(names) > 0 {
		lines = append(lines, "Hostnames: "+strings.Join(names, ", "))
	}

	if mode != ModePortScan {
		return true, strings.Join(lines, "\n")
	}

	open := false
	for _, proto := range protocols(host) {
		lines = append(lines, "\nProtocol: "+strings.ToUpper(proto))
		for _, port := range portsFor(host, proto) {
			lines = append(lines, portLine(port))
			if port.State.State == portStateOpen {
				open = true
			}
		}
	}

	return open, strings.Join(lines, "\n")
}

func hostnames(host *nmap.Host) []string {
	names := make([]string, 0, len(host.Hostnames))
	for _, h := range host.Hostnames {
		if h.Name != "" {
			names = append(names, h.Name)
		}
	}
	return names
}

// protocols returns the distinct port protocols of host in sorted order.
func protocols(host *nmap.Host) []string {
	seen := make(map[string]struct{})
	for i := range host.Ports {
		seen[host.Ports[i].Protocol] = struct{}{}
	}

	protos := make([]string, 0, len(seen))
	for p := range seen {
		protos = append(protos, p)
	}
	sort.Strings(protos)
	return protos
}

func portsFor(host *nmap.Host, proto string) []nmap.Port {
	ports := make([]nmap.Port, 0, len(host.Ports))
	for i := range host.Ports {
		if host.Ports[i].Protocol == proto {
			ports = append(ports, host.Ports[i])
		}
	}
	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].ID < ports[j].ID
	})
	return ports
}

// portLine formats one port as "  <id>/<proto>\t<state>\t<service>[ (product[ version])]".
func portLine(port nmap.Port) string {
	service := port.Service.Name
	if service == "" {
		service = unknownService
	}

	annotation := ""
	if port.Service.Product != "" {
		annotation = " (" + port.Service.Product
		if port.Service.Version != "" {
			annotation += " " + port.Service.Version
		}
		annotation += ")"
	}

	return fmt.Sprintf("  %d/%s\t%s\t%s%s", port.ID, port.Protocol, port.State.State, service, annotation)
}
