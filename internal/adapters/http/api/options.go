package api

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by the match listing.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.matches.maxLimit = n
		}
	}
}
