package config

import (
	"minhton/internal/configloader"
	"minhton/internal/logger"
	"fmt"
	"net"
	"strings"
)

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig = configloader.FileLoggerConfig
type LoggerConfig = configloader.LoggerConfig

// OverlayConfig fixes the tree's shape for its lifetime (§3): Fanout is the
// branching factor m, DSNLevel is how deep the Distributed Service Node
// hierarchy runs for entity search aggregation (§4.7; 0 disables it), and
// Mode is "public" or "private": the kind of interface address
// (*NodeConfig).Listen picks or accepts. Join and bootstrap do not read it.
type OverlayConfig struct {
	Fanout   uint16 `yaml:"fanout"`
	DSNLevel uint32 `yaml:"dsnLevel"`
	Mode     string `yaml:"mode"`
}

type Route53Config struct {
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
}

type CoreDNSConfig struct {
	BasePath      string   `yaml:"basePath"`
	Domain        string   `yaml:"domain"`
	EtcdEndpoints []string `yaml:"etcdEndpoints"`
}

// RegisterConfig publishes this node's address to an external directory
// (Route53 or CoreDNS/etcd) so future joiners' DNS-mode bootstrap can find
// it, independent of this node's own multicast-based discovery.
type RegisterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"`
	TTL     int64         `yaml:"ttl"`
	Route53 Route53Config `yaml:"route53"`
	CoreDNS CoreDNSConfig `yaml:"coredns"`
}

// BootstrapConfig describes how a new participant finds an existing overlay
// member to join through (§4.3 step 0). Mode is validated as "multicast",
// "dns", "static" or "init", and internal/bootstrap's ResolveBootstrap can
// turn the dns and static settings into peer addresses, but the
// participant reads neither: it always probes the multicast Group and
// self-promotes to root when nothing answers.
type BootstrapConfig struct {
	Mode      string         `yaml:"mode"`
	Group     string         `yaml:"group"`
	DNSName   string         `yaml:"dnsName"`
	SRV       bool           `yaml:"srv"`
	Service   string         `yaml:"service"`
	Proto     string         `yaml:"proto"`
	Resolver  string         `yaml:"resolver"`
	Port      int            `yaml:"port"`
	Peers     []string       `yaml:"peers"`
	Register  RegisterConfig `yaml:"register"`
}

type NodeConfig struct {
	Id   string `yaml:"id"`
	Bind string `yaml:"bind"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Node      NodeConfig      `yaml:"node"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig loads the configuration from a YAML file at the given path.
//
// This function performs only syntactic parsing of the YAML file. Call
// cfg.ValidateConfig() afterward to check for missing or invalid fields.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := configloader.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration, using internal/configloader's typed Override* helpers.
//
// Supported overrides:
//
//	NODE_ID, NODE_BIND, NODE_HOST, NODE_PORT
//	OVERLAY_FANOUT, OVERLAY_DSN_LEVEL, OVERLAY_MODE
//	BOOTSTRAP_MODE, BOOTSTRAP_GROUP, BOOTSTRAP_DNSNAME, BOOTSTRAP_SRV,
//	BOOTSTRAP_PORT, BOOTSTRAP_PEERS, BOOTSTRAP_RESOLVER
//	REGISTER_ENABLED, REGISTER_TYPE, REGISTER_TTL,
//	REGISTER_ROUTE53_ZONE_ID, REGISTER_ROUTE53_SUFFIX
//	TRACE_ENABLED, TRACE_EXPORTER, TRACE_ENDPOINT
//	LOGGER_ENABLED, LOGGER_LEVEL, LOGGER_ENCODING, LOGGER_MODE, LOGGER_FILE_PATH
func (cfg *Config) ApplyEnvOverrides() {
	configloader.OverrideString(&cfg.Node.Id, "NODE_ID")
	configloader.OverrideString(&cfg.Node.Bind, "NODE_BIND")
	if cfg.Node.Bind == "" {
		cfg.Node.Bind = "0.0.0.0"
	}
	configloader.OverrideString(&cfg.Node.Host, "NODE_HOST")
	configloader.OverrideInt(&cfg.Node.Port, "NODE_PORT")

	fanout := int(cfg.Overlay.Fanout)
	configloader.OverrideInt(&fanout, "OVERLAY_FANOUT")
	cfg.Overlay.Fanout = uint16(fanout)
	dsn := int(cfg.Overlay.DSNLevel)
	configloader.OverrideInt(&dsn, "OVERLAY_DSN_LEVEL")
	cfg.Overlay.DSNLevel = uint32(dsn)
	configloader.OverrideString(&cfg.Overlay.Mode, "OVERLAY_MODE")

	configloader.OverrideString(&cfg.Bootstrap.Mode, "BOOTSTRAP_MODE")
	configloader.OverrideString(&cfg.Bootstrap.Group, "BOOTSTRAP_GROUP")
	configloader.OverrideString(&cfg.Bootstrap.DNSName, "BOOTSTRAP_DNSNAME")
	configloader.OverrideBool(&cfg.Bootstrap.SRV, "BOOTSTRAP_SRV")
	configloader.OverrideInt(&cfg.Bootstrap.Port, "BOOTSTRAP_PORT")
	configloader.OverrideStringSlice(&cfg.Bootstrap.Peers, "BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.Bootstrap.Resolver, "BOOTSTRAP_RESOLVER")

	configloader.OverrideBool(&cfg.Bootstrap.Register.Enabled, "REGISTER_ENABLED")
	configloader.OverrideString(&cfg.Bootstrap.Register.Type, "REGISTER_TYPE")
	configloader.OverrideInt64(&cfg.Bootstrap.Register.TTL, "REGISTER_TTL")
	configloader.OverrideString(&cfg.Bootstrap.Register.Route53.HostedZoneID, "REGISTER_ROUTE53_ZONE_ID")
	configloader.OverrideString(&cfg.Bootstrap.Register.Route53.DomainSuffix, "REGISTER_ROUTE53_SUFFIX")

	configloader.OverrideBool(&cfg.Telemetry.Tracing.Enabled, "TRACE_ENABLED")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Exporter, "TRACE_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Endpoint, "TRACE_ENDPOINT")

	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ENABLED")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")
}

// ValidateConfig performs structural validation of the loaded
// configuration: required fields present, values in range, enum-like
// fields supported. It does not check protocol-level consistency (e.g.
// whether DSNLevel is reachable at the configured Fanout).
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Overlay.Fanout < 2 || cfg.Overlay.Fanout > 255 {
		errs = append(errs, fmt.Sprintf("overlay.fanout must be in [2,255], got %d", cfg.Overlay.Fanout))
	}
	switch cfg.Overlay.Mode {
	case "public", "private":
	default:
		errs = append(errs, fmt.Sprintf("invalid overlay.mode: %s", cfg.Overlay.Mode))
	}

	b := cfg.Bootstrap
	switch b.Mode {
	case "multicast":
		if b.Group == "" {
			errs = append(errs, "bootstrap.group is required in mode=multicast")
		}
	case "dns":
		if b.DNSName == "" {
			errs = append(errs, "bootstrap.dnsName is required in mode=dns")
		}
		if !b.SRV && b.Port <= 0 {
			errs = append(errs, "bootstrap.port must be > 0 when using A/AAAA (srv=false)")
		}
	case "static":
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	case "init":
		// first node in the overlay, no further constraints
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be multicast, dns, static or init)", b.Mode))
	}
	if b.Register.Enabled {
		switch b.Register.Type {
		case "route53":
			if b.Register.Route53.HostedZoneID == "" {
				errs = append(errs, "bootstrap.register.route53.hostedZoneId is required when register.enabled=true")
			}
			if b.Register.Route53.DomainSuffix == "" {
				errs = append(errs, "bootstrap.register.route53.domainSuffix is required when register.enabled=true")
			}
		case "coredns":
			if b.Register.CoreDNS.BasePath == "" {
				errs = append(errs, "bootstrap.register.coredns.basePath is required when register.enabled=true")
			}
			if len(b.Register.CoreDNS.EtcdEndpoints) == 0 {
				errs = append(errs, "bootstrap.register.coredns.etcdEndpoints is required when register.enabled=true")
			}
		default:
			errs = append(errs, fmt.Sprintf("invalid bootstrap.register.type: %s", b.Register.Type))
		}
		if b.Register.TTL <= 0 {
			errs = append(errs, "bootstrap.register.ttl must be > 0 when register.enabled=true")
		}
	}

	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "jaeger", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Endpoint == "" {
			errs = append(errs, "telemetry.tracing.endpoint is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at DEBUG level, useful for
// debugging startup issues and verifying the configuration was parsed as
// expected.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),

		logger.F("overlay.fanout", cfg.Overlay.Fanout),
		logger.F("overlay.dsnLevel", cfg.Overlay.DSNLevel),
		logger.F("overlay.mode", cfg.Overlay.Mode),

		logger.F("bootstrap.mode", cfg.Bootstrap.Mode),
		logger.F("bootstrap.group", cfg.Bootstrap.Group),
		logger.F("bootstrap.dnsName", cfg.Bootstrap.DNSName),
		logger.F("bootstrap.srv", cfg.Bootstrap.SRV),
		logger.F("bootstrap.port", cfg.Bootstrap.Port),
		logger.F("bootstrap.peers", cfg.Bootstrap.Peers),
		logger.F("bootstrap.register.enabled", cfg.Bootstrap.Register.Enabled),
		logger.F("bootstrap.register.type", cfg.Bootstrap.Register.Type),

		logger.F("node.id", cfg.Node.Id),
		logger.F("node.bind", cfg.Node.Bind),
		logger.F("node.host", cfg.Node.Host),
		logger.F("node.port", cfg.Node.Port),

		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}
