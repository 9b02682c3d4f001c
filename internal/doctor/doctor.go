// Package doctor runs readiness diagnostics for config, the engine endpoints
// and the desktop integrations.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/nolook/internal/api"
	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/connection"
	"github.com/rbright/nolook/internal/hypr"
	"github.com/rbright/nolook/internal/indicator"
	"github.com/rbright/nolook/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config and engine checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket at $XDG_RUNTIME_DIR/"+ipc.SocketName, "XDG_RUNTIME_DIR is empty; control socket unavailable"))

	checks = append(checks, checkEngineState(ctx, cfg.Config))
	switch cfg.Config.Engine.Push {
	case config.PushGRPC:
		checks = append(checks, checkGRPCHealth(ctx, cfg.Config))
	default:
		checks = append(checks, checkWebSocket(ctx, cfg.Config))
	}

	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkIndicator(ctx, cfg.Config.Indicator)...)
	}
	if cfg.Config.Indicator.SoundEnable {
		checks = append(checks, checkAudio())
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func timeout(cfg config.Config) time.Duration {
	if d := cfg.Engine.RequestTimeout(); d > 0 {
		return d
	}
	return 2 * time.Second
}

// checkEngineState performs one pull of engine state.
func checkEngineState(ctx context.Context, cfg config.Config) Check {
	const name = "engine.state"

	client, err := api.New(api.Options{
		BaseURL:   cfg.Engine.HTTP,
		StatePath: cfg.Engine.StatePath,
		Timeout:   timeout(cfg),
	})
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()
	snapshot, err := client.FetchState(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}

	st := snapshot.Normalize().State
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s %d%% from %s", st.Mode, st.RatioPercent(), client.BaseURL())}
}

// checkWebSocket opens and closes one push subscription.
func checkWebSocket(ctx context.Context, cfg config.Config) Check {
	const name = "engine.push"

	client, err := api.New(api.Options{BaseURL: cfg.Engine.HTTP})
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	url := api.WebSocketURL(client.BaseURL(), cfg.Engine.WSPath)

	ctx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()
	stream, err := (&connection.WebSocket{URL: url, DialTimeout: timeout(cfg)}).Dial(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	_ = stream.Close()
	return Check{Name: name, Pass: true, Message: "websocket subscribed at " + url}
}

// checkGRPCHealth asks the engine's gRPC health service about the Watch service.
func checkGRPCHealth(ctx context.Context, cfg config.Config) Check {
	const name = "engine.push"

	target := strings.TrimSpace(cfg.Engine.GRPC)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("dial %q: %v", target, err)}
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()
	conn.Connect()
	if err := connection.WaitForReady(ctx, conn); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("grpc %s not ready: %v", target, err)}
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: connection.ServiceName})
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("health check failed: %v", err)}
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is %s", connection.ServiceName, resp.GetStatus())}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s serving at %s", connection.ServiceName, target)}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig) []Check {
	if !strings.EqualFold(strings.TrimSpace(cfg.Backend), indicator.BackendHypr) {
		return []Check{checkBinary("busctl", "desktop notifications")}
	}

	checks := []Check{checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty")}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	tag, err := hypr.Version(ctx)
	if err != nil {
		return append(checks, Check{Name: "hyprctl", Pass: false, Message: err.Error()})
	}
	return append(checks, Check{Name: "hyprctl", Pass: true, Message: "Hyprland " + tag})
}

func checkAudio() Check {
	device, err := indicator.OutputDevice()
	if err != nil {
		return Check{Name: "pulse", Pass: false, Message: err.Error()}
	}
	return Check{Name: "pulse", Pass: true, Message: "cues play on " + device}
}
