// Package discovery finds engines advertised over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/rbright/nolook/internal/logging"
)

// Domain is the mDNS browse domain.
const Domain = "local."

// ErrNotFound is returned by First when nothing answered before the timeout.
var ErrNotFound = errors.New("no engine advertised on the local network")

// Endpoint is one advertised engine.
type Endpoint struct {
	Instance string
	Host     string
	Port     int
	Scheme   string
	Text     []string
}

// URL is the engine HTTP base URL.
func (e Endpoint) URL() string {
	return e.Scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Browse collects endpoints for service until timeout elapses or ctx ends.
func Browse(ctx context.Context, service string, timeout time.Duration, logger *slog.Logger) ([]Endpoint, error) {
	logger = logging.OrDiscard(logger)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("create mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(ctx, service, Domain, entries); err != nil {
		return nil, fmt.Errorf("browse %s: %w", service, err)
	}

	var found []Endpoint
	seen := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			logger.Debug("mdns browse finished", "service", service, "found", len(found))
			return found, nil
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			ep, usable := FromEntry(entry)
			if !usable || seen[ep.URL()] {
				continue
			}
			seen[ep.URL()] = true
			found = append(found, ep)
		}
	}
}

// First returns the first endpoint advertised for service.
func First(ctx context.Context, service string, timeout time.Duration, logger *slog.Logger) (Endpoint, error) {
	found, err := Browse(ctx, service, timeout, logger)
	if err != nil {
		return Endpoint{}, err
	}
	if len(found) == 0 {
		return Endpoint{}, ErrNotFound
	}
	return found[0], nil
}

// FromEntry converts a resolved entry, preferring IPv4. A TXT record
// "scheme=https" selects TLS; anything else means plain http.
func FromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil || entry.Port <= 0 {
		return Endpoint{}, false
	}

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		host = strings.TrimSuffix(entry.HostName, ".")
	}
	if host == "" {
		return Endpoint{}, false
	}

	scheme := "http"
	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if ok && strings.EqualFold(key, "scheme") && strings.EqualFold(value, "https") {
			scheme = "https"
		}
	}

	return Endpoint{
		Instance: entry.Instance,
		Host:     host,
		Port:     entry.Port,
		Scheme:   scheme,
		Text:     entry.Text,
	}, true
}
