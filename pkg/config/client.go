package config

// ClientConfig holds defaults for the command-line client.
type ClientConfig struct {
	APIBaseURL string
}

// LoadClientConfig constructs a ClientConfig from environment variables.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		APIBaseURL: GetString("TODO_API_URL", "http://localhost:5001/api"),
	}
}
