package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/config"
	"github.com/glorpus-work/repokit/pkg/correlation"
	"github.com/glorpus-work/repokit/pkg/download"
	repohttp "github.com/glorpus-work/repokit/pkg/http"
	"github.com/glorpus-work/repokit/pkg/policy"
	"github.com/glorpus-work/repokit/pkg/repository"
	"github.com/glorpus-work/repokit/pkg/source"
	"github.com/glorpus-work/repokit/pkg/source/composite"
	"github.com/glorpus-work/repokit/pkg/source/installed"
	"github.com/glorpus-work/repokit/pkg/source/preindexed"
	"github.com/glorpus-work/repokit/pkg/source/rest"
	"github.com/glorpus-work/repokit/pkg/sourcelist"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
)

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path makes LoadConfig report a descriptive error.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadConfig reads the config file and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel, logger.FormatText)
	return cfg, nil
}

// loadManager wires the source list, the factories and policy from cfg.
func loadManager(cfg *config.Config) (*repository.Manager, error) {
	provider, err := policy.LoadSettings(cfg.Settings.PolicyFile)
	if err != nil {
		return nil, err
	}

	list, err := sourcelist.New(sourcelist.Options{
		UserSources:      sourcelist.NewFileStream(cfg.GetUserSourcesPath()),
		Metadata:         sourcelist.NewFileStream(cfg.GetMetadataPath()),
		Policy:           provider,
		MaxWriteAttempts: cfg.Settings.MaxWriteAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	auth, err := repohttp.ParseAuthenticator(cfg.Settings.RestAuth)
	if err != nil {
		return nil, fmt.Errorf("invalid rest_auth setting: %w", err)
	}
	indexed := preindexed.NewFactory(cfg.GetSourceDataDir(), download.NewManager(cfg.Settings.HTTPTimeout, ""))
	indexed.DownloadDir = cfg.GetDownloadDir()
	factories := source.NewFactoryRegistry(
		indexed,
		rest.NewFactory(repohttp.NewClient(cfg.Settings.HTTPTimeout, "").WithAuthenticator(auth)),
		installed.NewFactory(cfg.GetInstalledDatabasePath()),
	)

	correlator := correlation.Default()
	if cfg.Settings.CorrelationScript != "" {
		script, err := correlation.LoadScript(cfg.Settings.CorrelationScript)
		if err != nil {
			return nil, err
		}
		correlator = correlation.Chain{correlation.ByIdentifier{}, script}
	}

	manager := repository.NewManager(list, factories, provider, repository.Options{
		AutoUpdateInterval: cfg.Settings.AutoUpdateInterval,
		RetryBackOff:       cfg.Settings.AddRetryBackoff,
		Composite: composite.Options{
			Correlator:    correlator,
			MemberTimeout: cfg.Settings.MemberSearchTimeout,
		},
	})
	manager.Hooks.OnEvent = func(e repository.Event) {
		logger.Debug("Source event", logger.Fields{"phase": e.Phase, "source": e.Source, "msg": e.Msg})
	}
	return manager, nil
}

func isJSONOutput() bool {
	return OutputFormat != nil && strings.EqualFold(*OutputFormat, "json")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", strings.Repeat(" ", TabWidth))
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
