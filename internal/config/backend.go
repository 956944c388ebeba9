package config

// ConfigBackend is the platform's plain settings store: UserDefaults on
// macOS, a YAML file elsewhere. Secrets never go through it.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
