package config

import "github.com/caarlos0/env/v11"

type Config struct {
	DBPath          string `env:"DB_PATH"           envDefault:"db.sqlite"`
	CronSecret      string `env:"CRON_SECRET,required,notEmpty"`
	SweepSpec       string `env:"SWEEP_SPEC"        envDefault:"*/30 * * * *"`
	ProxyBaseURL    string `env:"PROXY_BASE_URL"    envDefault:"https://api.allorigins.win/raw?url="`
	CacheMaxEntries int    `env:"CACHE_MAX_ENTRIES" envDefault:"4096"`
}

func LoadConfig() Config {
	var cfg Config
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}
