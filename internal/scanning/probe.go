package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/scanfinder/internal/logging"
)

// Probe scans a single address with engine and normalizes the result. It
// calls the engine at most once and never returns an error or panics: every
// failure becomes an unsuccessful Outcome. A context that is already done
// short-circuits the probe without touching the engine.
func Probe(ctx context.Context, engine Engine, address string, mode Mode) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scan engine panicked", "target", address, "mode", mode, "panic", r)
			outcome = failure(address, FailureError, fmt.Sprintf(detailErrorFmt, fmt.Sprint(r)))
		}
		outcome.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		return failure(address, FailureError, fmt.Sprintf(detailErrorFmt, err.Error()))
	}

	result, err := engine.Scan(ctx, address, mode)
	if err != nil {
		if isTimeout(err) {
			logging.DebugScan("Probe timed out", address, "mode", mode)
			return failure(address, FailureTimeout, DetailTimeout)
		}
		logging.DebugScan("Probe failed", address, "mode", mode, "error", err)
		return failure(address, FailureError, fmt.Sprintf(detailErrorFmt, err.Error()))
	}

	host := findHost(result, address)
	if host == nil {
		return failure(address, FailureNotFound, DetailNotFound)
	}

	success, detail := describeHost(host, address, mode)
	return Outcome{
		Address: address,
		Success: success,
		Detail:  detail,
		Failure: FailureNone,
	}
}

func failure(address string, kind FailureKind, detail string) Outcome {
	return Outcome{Address: address, Success: false, Detail: detail, Failure: kind}
}

func isTimeout(err error) bool {
	return errors.Is(err, nmap.ErrScanTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// findHost returns the host entry describing address. Addresses are compared
// as parsed IPs so that differently written forms of the same IPv6 address
// still match.
func findHost(result *nmap.Run, address string) *nmap.Host {
	if result == nil {
		return nil
	}

	want, wantErr := netip.ParseAddr(address)
	for i := range result.Hosts {
		host := &result.Hosts[i]
		for _, a := range host.Addresses {
			if a.Addr == address {
				return host
			}
			if wantErr != nil {
				continue
			}
			if got, err := netip.ParseAddr(a.Addr); err == nil && got.WithZone("") == want.WithZone("") {
				return host
			}
		}
	}
	return nil
}
