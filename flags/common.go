// Package flags holds the command line flags shared by the binaries and
// turns them into package configs.
package flags

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"committed-cart/amounts"
	"committed-cart/registry"
	"committed-cart/service"
	"committed-cart/storage"
	"committed-cart/subgraph"
)

const (
	BackendSubgraph = "subgraph"
	BackendSQLite   = "sqlite"
)

var (
	LogFormatFlag = &cli.StringFlag{
		Name:  "log.format",
		Usage: "Log output format (text|json)",
		Value: "text",
	}
	LogVerbosityFlag = &cli.IntFlag{
		Name:  "log.verbosity",
		Usage: "Logging verbosity (0=crit,1=error,2=warn,3=info,4=debug,5=trace)",
		Value: 3,
	}
	BackendFlag = &cli.StringFlag{
		Name:    "backend",
		Usage:   "Where rounds, messages and projects are read from (subgraph|sqlite)",
		Value:   BackendSubgraph,
		EnvVars: []string{"CART_BACKEND"},
	}
	SubgraphURLFlag = &cli.StringFlag{
		Name:    "subgraph.url",
		Usage:   "GraphQL endpoint of the funding round subgraph",
		EnvVars: []string{"CART_SUBGRAPH_URL"},
	}
	SubgraphPageSizeFlag = &cli.IntFlag{
		Name:  "subgraph.pagesize",
		Usage: "Entities requested per subgraph page",
		Value: subgraph.DefaultConfig().PageSize,
	}
	SubgraphTimeoutFlag = &cli.DurationFlag{
		Name:  "subgraph.timeout",
		Usage: "Timeout of a single subgraph request",
		Value: subgraph.DefaultConfig().Timeout,
	}
	SubgraphRetriesFlag = &cli.IntFlag{
		Name:  "subgraph.retries",
		Usage: "Retries for failed subgraph requests",
		Value: subgraph.DefaultConfig().MaxRetries,
	}
	IPFSGatewayFlag = &cli.StringFlag{
		Name:    "ipfs.gateway",
		Usage:   "Gateway prefix for project images",
		Value:   subgraph.DefaultConfig().IPFSGateway,
		EnvVars: []string{"CART_IPFS_GATEWAY"},
	}
	ProjectsFileFlag = &cli.StringFlag{
		Name:    "projects",
		Usage:   "JSON projects file used for project lookups instead of the backend",
		EnvVars: []string{"CART_PROJECTS_FILE"},
	}
	DBPathFlag = &cli.StringFlag{
		Name:    "db",
		Usage:   "SQLite database holding synced rounds",
		Value:   "data/cart.db",
		EnvVars: []string{"CART_DB"},
	}
	ConcurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "Messages decrypted and resolved in parallel",
		Value: service.DefaultConfig().Concurrency,
	}
	MaxDecimalsFlag = &cli.IntFlag{
		Name:    "amount.decimals",
		Usage:   "Maximum fraction digits of displayed amounts",
		Value:   service.DefaultConfig().MaxDecimals,
		EnvVars: []string{"CART_MAX_DECIMALS"},
	}
	GroupSeparatorFlag = &cli.StringFlag{
		Name:  "amount.group",
		Usage: "Thousands separator of displayed amounts",
		Value: amounts.DefaultLocale.GroupSeparator,
	}
	DecimalSeparatorFlag = &cli.StringFlag{
		Name:  "amount.point",
		Usage: "Decimal separator of displayed amounts",
		Value: amounts.DefaultLocale.DecimalSeparator,
	}
)

// LoggingFlags are accepted by every binary.
var LoggingFlags = []cli.Flag{LogFormatFlag, LogVerbosityFlag}

// SourceFlags select and configure the data backend.
var SourceFlags = []cli.Flag{
	BackendFlag,
	SubgraphURLFlag,
	SubgraphPageSizeFlag,
	SubgraphTimeoutFlag,
	SubgraphRetriesFlag,
	IPFSGatewayFlag,
	ProjectsFileFlag,
	DBPathFlag,
}

// SyncFlags configure copying from the subgraph into the local database.
// The backend is always the subgraph, so neither the backend nor a projects
// file can be chosen.
var SyncFlags = []cli.Flag{
	SubgraphURLFlag,
	SubgraphPageSizeFlag,
	SubgraphTimeoutFlag,
	SubgraphRetriesFlag,
	IPFSGatewayFlag,
	DBPathFlag,
}

// CartFlags tune reconstruction and amount formatting.
var CartFlags = []cli.Flag{ConcurrencyFlag, MaxDecimalsFlag, GroupSeparatorFlag, DecimalSeparatorFlag}

// SetupLogging installs the root logger described by the logging flags.
func SetupLogging(c *cli.Context) error {
	return setupLogging(os.Stderr, c.String(LogFormatFlag.Name), c.Int(LogVerbosityFlag.Name))
}

func setupLogging(w io.Writer, format string, verbosity int) error {
	level := log.FromLegacyLevel(verbosity)
	switch format {
	case "text", "":
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, false)))
	case "json":
		log.SetDefault(log.NewLogger(log.JSONHandlerWithLevel(w, level)))
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SubgraphConfig builds a subgraph client config from the source flags.
func SubgraphConfig(c *cli.Context) *subgraph.Config {
	cfg := subgraph.DefaultConfig()
	cfg.URL = c.String(SubgraphURLFlag.Name)
	cfg.PageSize = c.Int(SubgraphPageSizeFlag.Name)
	cfg.Timeout = c.Duration(SubgraphTimeoutFlag.Name)
	cfg.MaxRetries = c.Int(SubgraphRetriesFlag.Name)
	cfg.IPFSGateway = c.String(IPFSGatewayFlag.Name)
	return cfg
}

// ServiceConfig builds a cart service config from the cart flags.
func ServiceConfig(c *cli.Context) *service.Config {
	cfg := service.DefaultConfig()
	cfg.Concurrency = c.Int(ConcurrencyFlag.Name)
	cfg.MaxDecimals = c.Int(MaxDecimalsFlag.Name)
	cfg.Locale = &amounts.Locale{
		GroupSeparator:   c.String(GroupSeparatorFlag.Name),
		DecimalSeparator: c.String(DecimalSeparatorFlag.Name),
		GroupSize:        amounts.DefaultLocale.GroupSize,
	}
	return cfg
}

// Sources bundles the three lookups a cart needs.
type Sources struct {
	Messages service.MessageSource
	Projects service.ProjectLookup
	Rounds   service.RoundSource

	closer io.Closer
}

func (s *Sources) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenSources connects to the backend named by the backend flag. A projects
// file, when given, replaces the backend's project lookup.
func OpenSources(c *cli.Context) (*Sources, error) {
	sources, err := openBackend(c)
	if err != nil {
		return nil, err
	}

	if path := c.String(ProjectsFileFlag.Name); path != "" {
		projects := registry.NewMemoryRegistry(registry.Config{ProjectsFilePath: path})
		if err := projects.LoadProjectsFromFile(); err != nil {
			sources.Close()
			return nil, err
		}
		log.Info("Loaded projects file", "path", path, "projects", projects.Len())
		sources.Projects = projects
	}
	return sources, nil
}

func openBackend(c *cli.Context) (*Sources, error) {
	switch backend := c.String(BackendFlag.Name); backend {
	case BackendSubgraph:
		client, err := subgraph.NewClient(SubgraphConfig(c))
		if err != nil {
			return nil, err
		}
		return &Sources{Messages: client, Projects: client, Rounds: client}, nil
	case BackendSQLite:
		store, err := OpenStore(c)
		if err != nil {
			return nil, err
		}
		return &Sources{Messages: store, Projects: store, Rounds: store, closer: store}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// OpenStore opens the SQLite database named by the db flag.
func OpenStore(c *cli.Context) (*storage.SQLiteStore, error) {
	return storage.OpenSQLiteStore(c.String(DBPathFlag.Name))
}
