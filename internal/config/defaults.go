package config

import "github.com/spf13/viper"

// setDefaults registers every key so environment overrides apply even when
// the file does not mention them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("remote.mode", RemoteNone)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.project", "")
	v.SetDefault("remote.dir", "")

	v.SetDefault("hub.addr", ":8787")
	v.SetDefault("hub.project", "boda")
	v.SetDefault("hub.backend", "sqlite")
	v.SetDefault("hub.dsn", "")
	v.SetDefault("hub.read_only", false)
	v.SetDefault("hub.metrics", true)

	v.SetDefault("blob.backend", "fs")
	v.SetDefault("blob.dir", "")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.prefix", "ideas/")
	v.SetDefault("blob.path_style", false)
}
