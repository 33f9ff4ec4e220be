package config

import "time"

// SMTPConfig represents the configuration for the SMTP probe
type SMTPConfig struct {
	Sender            string
	HeloDomain        string
	Timeout           time.Duration
	MaxRetries        int
	CatchAllDetection bool
	SOCKS5Proxy       string
	SOCKS5Username    string
	SOCKS5Password    string
}

// MicrosoftAPIConfig represents the configuration for the Microsoft API probe
type MicrosoftAPIConfig struct {
	Enabled           bool
	Endpoint          string
	Timeout           time.Duration
	MaxRetries        int
	CatchAllDetection bool
}

// RateLimitConfig represents the outbound probe rate limiting configuration
type RateLimitConfig struct {
	MaxRequests     int
	Window          time.Duration
	GlobalPerSecond int
}

// DispatchConfig represents the batch dispatcher configuration
type DispatchConfig struct {
	Workers          int
	MaxWorkers       int
	ProcessIsolation bool
	MinDelay         time.Duration
	MaxDelay         time.Duration
	WorkerJoinLimit  time.Duration
}

// DomainsConfig holds the operator-managed domain lists
type DomainsConfig struct {
	Whitelist []string
	Blacklist []string
}

// GetSMTP returns the SMTP probe configuration
func (c *Config) GetSMTP() SMTPConfig {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		timeout = 10 * time.Second
	}
	return SMTPConfig{
		Sender:            c.GetString("smtp.sender"),
		HeloDomain:        c.GetString("smtp.helo_domain"),
		Timeout:           timeout,
		MaxRetries:        c.GetInt("smtp.max_retries"),
		CatchAllDetection: c.GetBool("smtp.catch_all_detection"),
		SOCKS5Proxy:       c.GetString("smtp.socks5_proxy"),
		SOCKS5Username:    c.GetString("smtp.socks5_username"),
		SOCKS5Password:    c.GetString("smtp.socks5_password"),
	}
}

// GetMicrosoftAPI returns the Microsoft API probe configuration
func (c *Config) GetMicrosoftAPI() MicrosoftAPIConfig {
	timeout, err := c.GetDuration("microsoft_api.timeout")
	if err != nil {
		timeout = 10 * time.Second
	}
	return MicrosoftAPIConfig{
		Enabled:           c.GetBool("microsoft_api.enabled"),
		Endpoint:          c.GetString("microsoft_api.endpoint"),
		Timeout:           timeout,
		MaxRetries:        c.GetInt("microsoft_api.max_retries"),
		CatchAllDetection: c.GetBool("microsoft_api.catch_all_detection"),
	}
}

// GetRateLimit returns the rate limiting configuration
func (c *Config) GetRateLimit() RateLimitConfig {
	window, err := c.GetDuration("ratelimit.window")
	if err != nil {
		window = 60 * time.Second
	}
	return RateLimitConfig{
		MaxRequests:     c.GetInt("ratelimit.max_requests"),
		Window:          window,
		GlobalPerSecond: c.GetInt("ratelimit.global_per_second"),
	}
}

// GetDispatch returns the batch dispatcher configuration
func (c *Config) GetDispatch() DispatchConfig {
	minDelay, err := c.GetDuration("dispatch.min_delay")
	if err != nil {
		minDelay = 2 * time.Second
	}
	maxDelay, err := c.GetDuration("dispatch.max_delay")
	if err != nil {
		maxDelay = 4 * time.Second
	}
	joinLimit, err := c.GetDuration("dispatch.worker_join_timeout")
	if err != nil {
		joinLimit = 5 * time.Minute
	}
	return DispatchConfig{
		Workers:          c.GetInt("dispatch.workers"),
		MaxWorkers:       c.GetInt("dispatch.max_workers"),
		ProcessIsolation: c.GetBool("dispatch.process_isolation"),
		MinDelay:         minDelay,
		MaxDelay:         maxDelay,
		WorkerJoinLimit:  joinLimit,
	}
}

// GetDomains returns the configured domain lists
func (c *Config) GetDomains() DomainsConfig {
	return DomainsConfig{
		Whitelist: c.GetStringSlice("domains.whitelist"),
		Blacklist: c.GetStringSlice("domains.blacklist"),
	}
}
