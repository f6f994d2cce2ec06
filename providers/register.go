package providers

import (
	"fmt"
	"net/url"

	settingsgateway "github.com/Favna/settings-gateway"
)

func init() {
	for _, scheme := range []string{"file", "json"} {
		settingsgateway.RegisterProviderFactory(scheme, func(dsn string) (settingsgateway.Provider, error) {
			path, watch, err := parseFileDSN(dsn)
			if err != nil {
				return nil, err
			}
			return NewJSONFileProvider(path, JSONFileOptions{Watch: watch})
		})
	}
	for _, scheme := range []string{"postgres", "postgresql"} {
		settingsgateway.RegisterProviderFactory(scheme, func(dsn string) (settingsgateway.Provider, error) {
			return NewPostgresProvider(dsn)
		})
	}
}

// parseFileDSN extracts the file path and options from DSNs like
// file:///var/lib/app/settings.json?watch=1 or json://settings.json.
func parseFileDSN(dsn string) (path string, watch bool, err error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", false, err
	}
	path = parsed.Path
	if parsed.Host != "" {
		path = parsed.Host + path
	}
	if path == "" {
		return "", false, fmt.Errorf("%w: file DSN %q has no path", settingsgateway.ErrInvalidInput, dsn)
	}
	switch parsed.Query().Get("watch") {
	case "1", "true", "yes":
		watch = true
	}
	return path, watch, nil
}
