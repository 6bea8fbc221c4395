package config

import "os"

func IsDebug() bool {
	return os.Getenv("REPLYBOT_DEBUG") == "1"
}
