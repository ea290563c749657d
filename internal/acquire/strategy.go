package acquire

import (
	"os"
	"strings"

	"stemforge/internal/config"
)

// Strategy is one named acquisition configuration.
type Strategy struct {
	Name string
	// Client selects the player client identity presented to the source.
	Client string
	// UseCredentials requests that the credential material be supplied.
	UseCredentials bool
}

// Credential is the optional credential material available to strategies.
type Credential struct {
	CookiesFile string
}

// Available reports whether the cookies file exists and is non-empty.
func (c Credential) Available() bool {
	path := strings.TrimSpace(c.CookiesFile)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Plan returns the strategies to attempt, preserving configured order.
// Credentialed strategies are skipped (and returned separately) when no
// credential material is usable.
func Plan(strategies []Strategy, cred Credential) (plan []Strategy, skipped []Strategy) {
	available := cred.Available()
	for _, strategy := range strategies {
		if strategy.UseCredentials && !available {
			skipped = append(skipped, strategy)
			continue
		}
		plan = append(plan, strategy)
	}
	return plan, skipped
}

// StrategiesFromConfig converts configured strategies in order.
func StrategiesFromConfig(items []config.Strategy) []Strategy {
	out := make([]Strategy, 0, len(items))
	for _, item := range items {
		out = append(out, Strategy{Name: item.Name, Client: item.Client, UseCredentials: item.UseCookies})
	}
	return out
}
