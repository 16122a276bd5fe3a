package dynamo

// Config holds table configuration for the DynamoDB backend.
type Config struct {
	// DataTable holds version records, partitioned by bucket-qualified key.
	// Default: "stratum_data"
	DataTable string

	// IndexTable holds secondary-index entries, partitioned by index name.
	// Default: "stratum_index"
	IndexTable string
}

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		DataTable:  "stratum_data",
		IndexTable: "stratum_index",
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.DataTable == "" {
		c.DataTable = "stratum_data"
	}
	if c.IndexTable == "" {
		c.IndexTable = "stratum_index"
	}
}
