package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	TemplateProfile   = "profile"
	TemplateCovertctl = "covertctl"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case TemplateProfile:
		return profileTemplate, nil
	case TemplateCovertctl:
		return covertctlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const profileTemplate = `# Channel profile. Both endpoints must load the same profile.

[medium]
kind = "localfs"      # localfs | redis | mongo | drive
root = "./objects"
watch = true

# kind = "redis"
# addr = "127.0.0.1:6379"
# namespace = "covertfs"

# kind = "mongo"
# uri = "mongodb://localhost:27017"
# database = "covertfs"
# collection = "objects"

# kind = "drive"
# credentials = "credentials.json"
# folder = "<drive folder id>"

[encoding]
kind = "structured"   # structured | derived
# field_size = 256
# field_count = 10

[session]
poll_interval = "16ms"
connect_poll_interval = "100ms"
max_mine_iterations = 1048576
join_attempts = 16
`

const covertctlTemplate = `profile = "profile.toml"
log_level = "info"
# status_addr = "127.0.0.1:7040"
`
