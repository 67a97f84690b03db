// Package config describes the proxies, servers, and checks a
// checkengine instance watches, and builds the internal/backend
// object graph the check engine runs against. Configuration parsing
// is an external collaborator of the engine: the engine only ever
// sees *backend.Proxy/*backend.Server.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/relaylb/checkengine/internal/backend"
)

// Config is the top-level document loaded from YAML.
type Config struct {
	AdminAddr string         `yaml:"admin_addr"`
	MaxFD     int            `yaml:"max_fd"`
	Proxies   []ProxyConfig  `yaml:"proxies"`
}

// ProxyConfig describes one backend group.
type ProxyConfig struct {
	ID           string         `yaml:"id"`
	Protocol     string         `yaml:"protocol"`      // "", "http", "ssl3", "smtp"
	CheckRequest string         `yaml:"check_request"` // raw probe payload, literal bytes
	SourceAddr   string         `yaml:"source_addr"`
	Options      []string       `yaml:"options"` // "redispatch", "bind_src", "transparent"
	Strategy     string         `yaml:"strategy"`
	Servers      []ServerConfig `yaml:"servers"`
}

// ServerConfig describes one checked endpoint within a proxy.
type ServerConfig struct {
	ID          string   `yaml:"id"`
	Addr        string   `yaml:"addr"`
	Port        uint16   `yaml:"port"`
	CheckAddr   string   `yaml:"check_addr"`
	CheckPort   uint16   `yaml:"check_port"`
	SourceAddr  string   `yaml:"source_addr"`
	Backup      bool     `yaml:"backup"`
	BindSrc     bool     `yaml:"bind_src"`
	Transparent bool     `yaml:"transparent"`
	Inter       string   `yaml:"inter"`
	Rise        uint32   `yaml:"rise"`
	Fall        uint32   `yaml:"fall"`
	Weight      int      `yaml:"weight"`
	MaxConn     int      `yaml:"max_conn"`
}

const (
	defaultAdminAddr = ":9090"
	defaultMaxFD     = 65536
	defaultInter     = 2 * time.Second
	defaultRise      = 2
	defaultFall      = 3
	defaultWeight    = 1
)

func applyDefaults(c *Config) {
	if c.AdminAddr == "" {
		c.AdminAddr = defaultAdminAddr
	}
	if c.MaxFD == 0 {
		c.MaxFD = defaultMaxFD
	}
}

func proxyOptionFlags(opts []string) (backend.ProxyOptions, error) {
	var flags backend.ProxyOptions
	for _, o := range opts {
		switch o {
		case "redispatch":
			flags |= backend.OptRedispatch
		case "bind_src":
			flags |= backend.OptBindSrc
		case "transparent":
			flags |= backend.OptTransparent
		default:
			return 0, fmt.Errorf("unknown proxy option %q", o)
		}
	}
	return flags, nil
}

func protoFlags(name string) (backend.CheckProto, error) {
	switch name {
	case "", "tcp":
		return 0, nil
	case "http":
		return backend.ProtoHTTP, nil
	case "ssl3":
		return backend.ProtoSSL3, nil
	case "smtp":
		return backend.ProtoSMTP, nil
	default:
		return 0, fmt.Errorf("unknown check protocol %q", name)
	}
}

func parseAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}

// SourceBindOverrides maps a server ID to a source address override,
// loaded from the TOML overlay (see sourcebind.go) independently of the YAML
// proxy declarations.
type SourceBindOverrides map[string]string

// Build constructs the backend.Proxy/backend.Server object graph
// described by c. overrides, if non-nil, replaces a server's
// SourceAddr with a per-environment value from the TOML overlay.
func (c *Config) Build(overrides SourceBindOverrides) ([]*backend.Proxy, error) {
	applyDefaults(c)

	proxies := make([]*backend.Proxy, 0, len(c.Proxies))
	for _, pc := range c.Proxies {
		if pc.ID == "" {
			return nil, fmt.Errorf("proxy missing id")
		}
		proto, err := protoFlags(pc.Protocol)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", pc.ID, err)
		}
		opts, err := proxyOptionFlags(pc.Options)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", pc.ID, err)
		}
		srcAddr, err := parseAddr(pc.SourceAddr)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: source_addr: %w", pc.ID, err)
		}

		p := backend.NewProxy(pc.ID)
		p.Proto = proto
		p.Options = opts
		p.SourceAddr = srcAddr
		p.CheckReq = []byte(pc.CheckRequest)

		for _, sc := range pc.Servers {
			s, err := buildServer(sc, overrides)
			if err != nil {
				return nil, fmt.Errorf("proxy %s: server %s: %w", pc.ID, sc.ID, err)
			}
			p.AddServer(s)
		}
		proxies = append(proxies, p)
	}
	return proxies, nil
}

func buildServer(sc ServerConfig, overrides SourceBindOverrides) (*backend.Server, error) {
	if sc.ID == "" {
		return nil, fmt.Errorf("server missing id")
	}
	addr, err := netip.ParseAddr(sc.Addr)
	if err != nil {
		return nil, fmt.Errorf("addr: %w", err)
	}
	checkAddr, err := parseAddr(sc.CheckAddr)
	if err != nil {
		return nil, fmt.Errorf("check_addr: %w", err)
	}

	sourceRaw := sc.SourceAddr
	if overrides != nil {
		if v, ok := overrides[sc.ID]; ok {
			sourceRaw = v
		}
	}
	sourceAddr, err := parseAddr(sourceRaw)
	if err != nil {
		return nil, fmt.Errorf("source_addr: %w", err)
	}

	inter := defaultInter
	if sc.Inter != "" {
		inter, err = time.ParseDuration(sc.Inter)
		if err != nil {
			return nil, fmt.Errorf("inter: %w", err)
		}
	}
	rise := sc.Rise
	if rise == 0 {
		rise = defaultRise
	}
	fall := sc.Fall
	if fall == 0 {
		fall = defaultFall
	}
	weight := sc.Weight
	if weight == 0 {
		weight = defaultWeight
	}

	s := backend.NewServer(sc.ID, nil)
	s.Addr = addr
	s.Port = sc.Port
	s.CheckAddr = checkAddr
	s.CheckPort = sc.CheckPort
	s.SourceAddr = sourceAddr
	s.Inter = inter
	s.Rise = rise
	s.Fall = fall
	s.Weight = weight
	s.MaxConn = sc.MaxConn
	s.State = backend.StateChecked
	if sc.Backup {
		s.State |= backend.StateBackup
	}
	if sc.BindSrc {
		s.State |= backend.StateBindSrc
	}
	if sc.Transparent {
		s.State |= backend.StateTransparent
	}
	return s, nil
}
