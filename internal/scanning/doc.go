// Package scanning runs a single host probe against the nmap scan engine and
// normalizes whatever comes back into an Outcome.
//
// # Overview
//
// A probe has one of two modes:
//
//   - ModeDiscovery checks whether a host is up (nmap -sn). The probe
//     succeeds when the target reports state "up".
//   - ModePortScan runs a SYN scan of the most common ports with service
//     detection (nmap -sS --top-ports N -sV -T4). The probe succeeds when at
//     least one port is open.
//
// # Failure Normalization
//
// Probe never returns an error. Every failure is folded into the Outcome:
//
//	Timeout - No response            the engine timed out
//	Host not found in scan results   the target is absent from the engine output
//	Error: <message>                 any other engine failure, including panics
//
// # Engines
//
// Engine is the boundary to the scanner. NmapEngine drives the nmap binary
// through github.com/Ullaakut/nmap/v3 and applies a per-mode timeout. Tests
// substitute an in-memory Engine that returns prepared *nmap.Run values.
package scanning
