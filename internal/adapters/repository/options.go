package repository

// Option applies a configuration option to the CSVStore.
type Option func(*CSVStore)

// WithPath sets the backing CSV file path.
func WithPath(path string) Option {
	return func(s *CSVStore) {
		if path != "" {
			s.path = path
		}
	}
}
