/*
Package server provides the HTTP API for storing and querying surface sets.

A surface set is a named list of surfaces posted as a JSON list, a JSON export
envelope, or a binary export.  Sets are kept in a badger store, optionally behind
an in-memory cache, and each surface can then be queried for voxel centers, point
classification, and boundary crossings.  Mutating requests can be restricted with
JWTs signed by the configured secret key.

Configuration is a TOML file:

	[server]
	httpAddress = "localhost:8000"
	corsDomains = ["http://example.org"]
	workers = 8
	maxBodySize = 512   # MB

	[logging]
	logfile = "/demo/logs/surfaces.log"
	max_log_size = 500  # MB
	max_log_age = 30    # days

	[auth]
	secret_key = "change me"
	auth_file = "users.json"

	[store]
	path = "/demo/surfacesdb"
	compression = "zstd"

	[cache]
	size = 1024  # MB

See /api/help on a running server for the list of endpoints.
*/
package server
