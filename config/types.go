package config

// RPC configures the JSON-RPC listener and its admission controls.
type RPC struct {
	ListenAddress         string   `toml:"ListenAddress"`
	ReadHeaderTimeoutSecs int      `toml:"ReadHeaderTimeoutSecs"`
	WriteTimeoutSecs      int      `toml:"WriteTimeoutSecs"`
	RateLimitPerSecond    float64  `toml:"RateLimitPerSecond"`
	RateLimitBurst        int      `toml:"RateLimitBurst"`
	TrustProxyHeaders     bool     `toml:"TrustProxyHeaders"`
	TrustedProxies        []string `toml:"TrustedProxies"`
	IdempotencyPath       string   `toml:"IdempotencyPath"`
	IdempotencyTTLSecs    int      `toml:"IdempotencyTTLSecs"`
}

// Auth configures bearer token validation. The HMAC secret is never stored in
// the config file; it is read from the environment variable named by SecretEnv.
type Auth struct {
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
	SecretEnv string `toml:"SecretEnv"`
}

// Allocation mints Amount ledger units to Address on first start.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Faucet controls the development faucet RPC.
type Faucet struct {
	Enabled bool   `toml:"Enabled"`
	Amount  string `toml:"Amount"`
}

// Pricing configures the fixed USD rate used for quotes.
type Pricing struct {
	RateE8        string `toml:"RateE8"`
	UpdatedAt     int64  `toml:"UpdatedAt"`
	MaxAgeSeconds int64  `toml:"MaxAgeSeconds"`
}

// Logging configures the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}
