package assets

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithDir sets the asset directory.
func WithDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.dir = dir
		}
	}
}
