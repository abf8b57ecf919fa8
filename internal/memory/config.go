package memory

// Config holds long-term memory settings.
type Config struct {
	Enabled bool
	// MaxResults bounds how many records are injected per turn.
	MaxResults int
	// SimilarityThreshold is the minimum similarity for retrieval.
	SimilarityThreshold float64
	// DuplicateThreshold is the similarity above which a new fact is
	// considered already known and is not stored again.
	DuplicateThreshold float64
	// Concurrency bounds parallel embedding and storage during extraction.
	Concurrency int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxResults:          5,
		SimilarityThreshold: 0.3,
		DuplicateThreshold:  0.9,
		Concurrency:         4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = d.DuplicateThreshold
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}
