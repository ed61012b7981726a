package probe

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agentvault/agent-vault/internal/config"
	"github.com/spf13/cobra"
)

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Checks whether the local service process answers at all",
		Run: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool(verboseFlag)
			runProbe("/healthz", verbose)
		},
	}
	cmd.Flags().BoolP(verboseFlag, "v", false, "Print the probe response body")
	return cmd
}

// runProbe hits the given path on the locally configured listen address
// and exits non-zero unless it answers 200 in time.
func runProbe(path string, verbose bool) {
	cfg := config.DefaultServiceConfigFromEnv()

	addr := cfg.Echo.ListenAddress
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if verbose {
		fmt.Println(string(body))
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "probe %s returned status %d\n", path, resp.StatusCode)
		os.Exit(1)
	}
}
