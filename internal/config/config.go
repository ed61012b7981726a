package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Vault tunes the encrypted key store.
type Vault struct {
	// Passphrase encrypts wallet secrets at rest. Empty is accepted:
	// each wallet then falls back to its agent ID as the password,
	// which is logged as a risk (kept permissive pending a product
	// decision on hardening).
	Passphrase    string
	KDFIterations int
	Dir           string
}

// Cluster configures the MPC cluster client.
type Cluster struct {
	Endpoint         string
	ProbeTimeout     time.Duration
	PollInterval     time.Duration
	HTTPTimeout      time.Duration
	AwaitTimeout     time.Duration
	KeyFetchAttempts int
	KeyFetchDelay    time.Duration
}

// Ledger configures the ledger collaborator client.
type Ledger struct {
	Endpoint   string
	Timeout    time.Duration
	MinBalance uint64
}

// Echo configures the HTTP surface.
type Echo struct {
	ListenAddress string
}

// Logger configures zerolog.
type Logger struct {
	Level              string
	PrettyPrintConsole bool
}

// Server is the full runtime configuration.
type Server struct {
	Vault   Vault
	Cluster Cluster
	Ledger  Ledger
	Echo    Echo
	Logger  Logger
}

// DefaultServiceConfigFromEnv builds the server config from defaults
// overridden by AGENT_VAULT_* environment variables
// (e.g. AGENT_VAULT_CLUSTER_ENDPOINT).
func DefaultServiceConfigFromEnv() Server {
	v := viper.New()
	v.SetEnvPrefix("AGENT_VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("vault.passphrase", "")
	v.SetDefault("vault.kdf_iterations", 100_000)
	v.SetDefault("vault.dir", "./data/wallets")

	v.SetDefault("cluster.endpoint", "http://localhost:9040")
	v.SetDefault("cluster.probe_timeout", 3*time.Second)
	v.SetDefault("cluster.poll_interval", 250*time.Millisecond)
	v.SetDefault("cluster.http_timeout", 10*time.Second)
	v.SetDefault("cluster.await_timeout", 30*time.Second)
	v.SetDefault("cluster.key_fetch_attempts", 3)
	v.SetDefault("cluster.key_fetch_delay", 2*time.Second)

	v.SetDefault("ledger.endpoint", "http://localhost:8899")
	v.SetDefault("ledger.timeout", 10*time.Second)
	// One signature fee in the ledger's smallest unit.
	v.SetDefault("ledger.min_balance", 5000)

	v.SetDefault("echo.listen_address", ":8080")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty_print_console", false)

	return Server{
		Vault: Vault{
			Passphrase:    v.GetString("vault.passphrase"),
			KDFIterations: v.GetInt("vault.kdf_iterations"),
			Dir:           v.GetString("vault.dir"),
		},
		Cluster: Cluster{
			Endpoint:         v.GetString("cluster.endpoint"),
			ProbeTimeout:     v.GetDuration("cluster.probe_timeout"),
			PollInterval:     v.GetDuration("cluster.poll_interval"),
			HTTPTimeout:      v.GetDuration("cluster.http_timeout"),
			AwaitTimeout:     v.GetDuration("cluster.await_timeout"),
			KeyFetchAttempts: v.GetInt("cluster.key_fetch_attempts"),
			KeyFetchDelay:    v.GetDuration("cluster.key_fetch_delay"),
		},
		Ledger: Ledger{
			Endpoint:   v.GetString("ledger.endpoint"),
			Timeout:    v.GetDuration("ledger.timeout"),
			MinBalance: v.GetUint64("ledger.min_balance"),
		},
		Echo: Echo{
			ListenAddress: v.GetString("echo.listen_address"),
		},
		Logger: Logger{
			Level:              v.GetString("logger.level"),
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
		},
	}
}
