package services

import "github.com/soltixdb/telewatch/internal/config"

func configQueue() config.QueueConfig {
	return config.DefaultConfig().Queue
}
