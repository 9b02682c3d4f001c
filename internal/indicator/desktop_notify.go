package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	busName  = "org.freedesktop.Notifications"
	busPath  = "/org/freedesktop/Notifications"
	busIface = "org.freedesktop.Notifications"
)

// Urgency levels of the freedesktop "urgency" hint.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// bubble is one Notify call.
type bubble struct {
	app       string
	replaces  uint32
	summary   string
	urgency   byte
	timeoutMS int
}

// params renders the Notify arguments for signature susssasa{sv}i: no
// actions and a single byte-valued urgency hint.
func (b bubble) params() []string {
	return []string{
		b.app,
		strconv.FormatUint(uint64(b.replaces), 10),
		"",
		b.summary,
		"",
		"0",
		"1", "urgency", "y", strconv.Itoa(int(b.urgency)),
		strconv.Itoa(b.timeoutMS),
	}
}

func showBubble(ctx context.Context, b bubble) (uint32, error) {
	out, err := busCall(ctx, "Notify", "susssasa{sv}i", b.params()...)
	if err != nil {
		return 0, err
	}
	return parseReplyID(out)
}

func closeBubble(ctx context.Context, id uint32) error {
	_, err := busCall(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

func busCall(ctx context.Context, method, signature string, params ...string) (string, error) {
	args := append([]string{"--user", "call", busName, busPath, busIface, method, signature}, params...)
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		if reply == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w (%s)", method, err, reply)
	}
	return reply, nil
}

// parseReplyID reads busctl's "u <id>" reply.
func parseReplyID(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("unexpected Notify reply %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", value, err)
	}
	return uint32(id), nil
}
