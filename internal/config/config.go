package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type WorkloadRuntime string

const (
	WorkloadRuntimeDocker  WorkloadRuntime = "docker"
	WorkloadRuntimeLibvirt WorkloadRuntime = "libvirt"
	WorkloadRuntimeNone    WorkloadRuntime = "none"

	EnvPrefix        string = "DOCKPULSE_"
	HardcodedVersion string = "V0.3"
)

type Config struct {
	HTTPAddr                string          `env:"HTTP_ADDR"                 envDefault:":5000"`
	ProbeListenAddr         string          `env:"PROBE_ADDR"                envDefault:"0.0.0.0:7443"`
	SampleInterval          time.Duration   `env:"SAMPLE_INTERVAL"           envDefault:"10s"`
	DiskPath                string          `env:"DISK_PATH"                 envDefault:"/"`
	WorkloadRuntime         WorkloadRuntime `env:"WORKLOAD_RUNTIME"          envDefault:"docker"`
	WorkloadReadConcurrency int             `env:"WORKLOAD_READ_CONCURRENCY" envDefault:"4"`
	ObserverBuffer          int             `env:"OBSERVER_BUFFER"           envDefault:"8"`
	LibvirtURI              string          `env:"LIBVIRT_URI"               envDefault:"qemu+unix:///system"`
	ReconnectInterval       time.Duration   `env:"RECONNECT_INTERVAL"        envDefault:"4s"`
	MaxReconnectJitter      time.Duration   `env:"RECONNECT_MAX_JITTER"      envDefault:"900ms"`
	HealthInterval          time.Duration   `env:"HEALTH_INTERVAL"           envDefault:"10s"`
	ShutdownTimeout         time.Duration   `env:"SHUTDOWN_TIMEOUT"          envDefault:"20s"`
	WebSocketWriteTimeout   time.Duration   `env:"WS_WRITE_TIMEOUT"          envDefault:"5s"`
	WebSocketPingInterval   time.Duration   `env:"WS_PING_INTERVAL"          envDefault:"30s"`
	ForwardGRPCAddr         string          `env:"FORWARD_GRPC_ADDR"         envDefault:""`
	ForwardGRPCMethod       string          `env:"FORWARD_GRPC_METHOD"       envDefault:"/dockpulse.telemetry.v1.TelemetryService/StreamSnapshots"`
	ForwardToken            string          `env:"FORWARD_TOKEN"             envDefault:""`
	TLSEnabled              bool            `env:"TLS_ENABLED"               envDefault:"false"`
	TLSSkipVerify           bool            `env:"TLS_SKIP_VERIFY"           envDefault:"false"`
	TLSCAPath               string          `env:"TLS_CA_PATH"               envDefault:""`
	TLSCertPath             string          `env:"TLS_CERT_PATH"             envDefault:""`
	TLSKeyPath              string          `env:"TLS_KEY_PATH"              envDefault:""`
	LogJSON                 bool            `env:"LOG_JSON"                  envDefault:"true"`
	LogLevel                string          `env:"LOG_LEVEL"                 envDefault:"info"`
	AgentVersion            string
	Hostname                string
}

func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	cfg.Hostname = hostname
	cfg.AgentVersion = HardcodedVersion
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.WorkloadRuntime = WorkloadRuntime(strings.ToLower(strings.TrimSpace(string(cfg.WorkloadRuntime))))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AgentVersion) == "" {
		return errors.New("agent version must not be empty")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("DOCKPULSE_HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("DOCKPULSE_PROBE_ADDR is required")
	}
	if c.SampleInterval <= 0 {
		return errors.New("DOCKPULSE_SAMPLE_INTERVAL must be > 0")
	}
	if strings.TrimSpace(c.DiskPath) == "" {
		return errors.New("DOCKPULSE_DISK_PATH is required")
	}
	if c.WorkloadReadConcurrency <= 0 {
		return errors.New("DOCKPULSE_WORKLOAD_READ_CONCURRENCY must be > 0")
	}
	if c.ObserverBuffer <= 0 {
		return errors.New("DOCKPULSE_OBSERVER_BUFFER must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("DOCKPULSE_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("DOCKPULSE_HEALTH_INTERVAL must be > 0")
	}
	switch c.WorkloadRuntime {
	case WorkloadRuntimeDocker, WorkloadRuntimeNone:
	case WorkloadRuntimeLibvirt:
		if c.LibvirtURI == "" {
			return errors.New("DOCKPULSE_LIBVIRT_URI is required for libvirt runtime")
		}
	default:
		return fmt.Errorf("unsupported workload runtime %q", c.WorkloadRuntime)
	}
	if c.ForwardGRPCAddr != "" && strings.TrimSpace(c.ForwardGRPCMethod) == "" {
		return errors.New("DOCKPULSE_FORWARD_GRPC_METHOD is required when forwarding is enabled")
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}
