package indicator

import (
	"fmt"

	"github.com/jfreymuth/pulse"
)

// OutputDevice names the Pulse sink audio cues will play on.
func OutputDevice() (string, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("nolook"),
		pulse.ClientApplicationIconName("camera-video"),
	)
	if err != nil {
		return "", fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	sink, err := client.DefaultSink()
	if err != nil {
		return "", fmt.Errorf("read default sink: %w", err)
	}
	if name := sink.Name(); name != "" {
		return name, nil
	}
	return sink.ID(), nil
}
