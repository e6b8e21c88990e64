package utils

import (
	"errors"
	"os"
	"strings"

	"authgate/internal/config"

	"github.com/gin-gonic/gin"
)

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetSecret returns the configured value, falling back to the first non-empty
// line of the referenced file. Lets deployments mount secrets instead of
// passing them through the environment.
func GetSecret(conf string, file string) string {
	if conf != "" {
		return conf
	}

	if file == "" {
		return ""
	}

	contents, err := ReadFile(file)
	if err != nil {
		return ""
	}

	return ParseSecretFile(contents)
}

func ParseSecretFile(contents string) string {
	for _, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// GetContext pulls the user context the session middleware stored on the
// request.
func GetContext(c *gin.Context) (config.UserContext, error) {
	value, exists := c.Get("context")
	if !exists {
		return config.UserContext{}, errors.New("no user context")
	}

	userContext, ok := value.(*config.UserContext)
	if !ok {
		return config.UserContext{}, errors.New("invalid user context")
	}

	return *userContext, nil
}
