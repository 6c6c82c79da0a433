package config

// RedactedConfig returns a copy of cfg safe to log: every secret-bearing
// field is masked and slices are detached from the original.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	for _, field := range []*string{
		&out.Riot.ApiKey,
		&out.Postgres.DSN,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.AdminKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *field != "" {
			*field = "***"
		}
	}

	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	return out
}
