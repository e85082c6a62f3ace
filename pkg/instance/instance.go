package instance

import (
	"os"
	"strings"
)

// GetID identifies the running process in logs. It prefers an explicit id,
// then the platform dyno name, then the host name.
func GetID() string {
	for _, key := range []string{"BIZVISTAR_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
