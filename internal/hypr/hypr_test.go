package hypr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyAndDismissUseHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	err := Notify(context.Background(), IconOK, 3000, "", "PauseFake: ON")
	require.NoError(t, err)

	err = DismissNotify(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "--quiet dispatch notify 5 3000 rgb(89b4fa) PauseFake: ON", lines[0])
	require.Equal(t, "--quiet dispatch dismissnotify", lines[1])
}

func TestVersionParsesTag(t *testing.T) {
	installHyprctlStub(t, `
if [[ "${1:-}" == "-j" && "${2:-}" == "version" ]]; then
  echo '{"branch":"main","tag":" v0.45.2 "}'
  exit 0
fi
exit 1
`)

	tag, err := Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v0.45.2", tag)
}

func TestVersionRejectsEmptyTag(t *testing.T) {
	installHyprctlStub(t, `
echo '{"tag":""}'
`)

	_, err := Version(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty tag")
}

func TestNotifyReturnsCombinedOutputOnFailure(t *testing.T) {
	installHyprctlStub(t, `
echo 'boom from hyprctl' >&2
exit 1
`)

	err := Notify(context.Background(), IconError, 1000, "rgb(f38ba8)", "Lock reset complete")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom from hyprctl")
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
