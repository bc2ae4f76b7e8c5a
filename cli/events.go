package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventsCmd creates the "events" subcommand.
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the bridge's event stream",
		RunE:  runEvents,
	}

	cmd.Flags().String("config", "", "Path to workbench.yaml (default: ./workbench.yaml, ~/.workbench/config.yaml)")
	cmd.Flags().String("bridge", "", "Bridge base URL (overrides host.endpoint)")
	cmd.Flags().Int("replay", 0, "Replay the most recent N journaled events first")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("bridge")
	if base == "" {
		base = cfg.Host.Endpoint
	}
	if base == "" {
		return exitError(exitConfig, "no bridge address configured; set host.endpoint or pass --bridge")
	}
	replay, _ := cmd.Flags().GetInt("replay")

	streamURL, err := buildStreamURL(base, replay)
	if err != nil {
		return exitError(exitConfig, "invalid bridge address %q: %v", base, err)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, streamURL, nil)
	if err != nil {
		return exitError(exitRuntime, "building stream request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return exitError(exitRuntime, "connecting to bridge: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exitError(exitRuntime, "bridge returned %s", resp.Status)
	}

	if err := printStream(cmd.OutOrStdout(), resp.Body); err != nil {
		// Context cancellation (Ctrl-C) is the normal way out of a tail.
		if cmd.Context().Err() != nil {
			return nil
		}
		return exitError(exitRuntime, "stream ended: %v", err)
	}
	return nil
}

// buildStreamURL resolves the stream endpoint from a base bridge URL. The
// base may point at the event-post endpoint or at the server root.
func buildStreamURL(base string, replay int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("missing scheme or host")
	}
	parsed.Path = "/api/events/stream"
	if replay > 0 {
		query := parsed.Query()
		query.Set("replay", strconv.Itoa(replay))
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

// printStream renders SSE frames as one line per event.
func printStream(w io.Writer, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if event != "" {
				fmt.Fprintf(w, "%s\t%s\n", event, data)
			}
			event, data = "", ""
		}
	}
	return scanner.Err()
}
