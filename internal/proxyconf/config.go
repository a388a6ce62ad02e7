package proxyconf

import "github.com/spf13/viper"

// Config is the typed table of the proxy's configuration file keys, plus the
// ambient keys this repo adds on top of them (log.*, ipc.socket_path).
type Config struct {
	ProxyEnabled bool
	ProxyPort    int

	CACertPath string
	CAKeyPath  string

	UpstreamHost    string
	UpstreamPort    int
	SentinelAddr    string
	ResolverDNSOnly bool

	CaptureDirectory string

	InjectionEnabled      bool
	InjectionSystemPrompt string
	InjectionSpoofVersion string
	InjectionContextFiles []string
	InjectionHeaders      map[string]string

	LogFormat string
	LogLevel  string

	IPCSocketPath string
}

// LoadConfig reads every recognized key out of an already-bound viper
// instance (see cliconf.BindViper for the search order and precedence).
func LoadConfig(v *viper.Viper) Config {
	return Config{
		ProxyEnabled: v.GetBool("proxy.enabled") || !v.IsSet("proxy.enabled"),
		ProxyPort:    intOrDefault(v, "proxy.port", 443),

		CACertPath: stringOrDefault(v, "ca.cert_path", "ca-cert.pem"),
		CAKeyPath:  stringOrDefault(v, "ca.key_path", "ca-key.pem"),

		UpstreamHost:    stringOrDefault(v, "upstream.host", "api2.cursor.sh"),
		UpstreamPort:    intOrDefault(v, "upstream.port", 443),
		SentinelAddr:    v.GetString("upstream.sentinel_addr"),
		ResolverDNSOnly: v.GetBool("resolver.dns_only"),

		CaptureDirectory: v.GetString("capture.directory"),

		InjectionEnabled:      v.GetBool("injection.enabled"),
		InjectionSystemPrompt: v.GetString("injection.system_prompt"),
		InjectionSpoofVersion: v.GetString("injection.spoof_version"),
		InjectionContextFiles: v.GetStringSlice("injection.context_files"),
		InjectionHeaders:      v.GetStringMapString("injection.headers"),

		LogFormat: stringOrDefault(v, "log.format", "auto"),
		LogLevel:  v.GetString("log.level"),

		IPCSocketPath: v.GetString("ipc.socket_path"),
	}
}

func intOrDefault(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	return v.GetInt(key)
}

func stringOrDefault(v *viper.Viper, key, def string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return def
}
