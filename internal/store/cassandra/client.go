package cassandra

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

// Config holds the connection settings for the Cassandra-backed show store.
type Config struct {
	Hosts       []string
	Keyspace    string
	Consistency string
	Timeout     time.Duration
	Username    string
	Password    string
}

// Client wraps a gocql.Session and owns schema initialization.
type Client struct {
	session  *gocql.Session
	keyspace string
}

// NewClient connects to the cluster and ensures the keyspace and tables
// exist.
func NewClient(cfg Config) (*Client, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = parseConsistency(cfg.Consistency)

	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.NumConns = 2
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	slog.Info("Connected to Cassandra", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)

	client := &Client{session: session, keyspace: cfg.Keyspace}
	if err := client.initializeSchema(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return client, nil
}

func (c *Client) Session() *gocql.Session {
	return c.session
}

func (c *Client) Keyspace() string {
	return c.keyspace
}

func (c *Client) Close() {
	if c.session != nil {
		c.session.Close()
		slog.Info("Cassandra session closed")
	}
}

func (c *Client) initializeSchema() error {
	createKeyspace := fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {
			'class': 'SimpleStrategy',
			'replication_factor': 1
		}`, c.keyspace)
	if err := c.session.Query(createKeyspace).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	// Shows keyed by id; events and audio refs are clustered under the
	// show so erase can drop them with a single partition delete.
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.shows (
				id text PRIMARY KEY,
				title text,
				create_time timestamp,
				modify_time timestamp,
				creator text,
				duration double
			)`, c.keyspace),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.show_events (
				show_id text,
				push_id timeuuid,
				time double,
				type text,
				params text,
				idx int,
				has_index boolean,
				duration double,
				PRIMARY KEY (show_id, push_id)
			)`, c.keyspace),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.show_audio (
				show_id text,
				asset_id text,
				start_at double,
				PRIMARY KEY (show_id, asset_id)
			)`, c.keyspace),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.audio_blobs (
				show_id text,
				asset_id text,
				data blob,
				PRIMARY KEY (show_id, asset_id)
			)`, c.keyspace),
	}
	for _, stmt := range statements {
		if err := c.session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	slog.Info("Cassandra schema initialized", "keyspace", c.keyspace)
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch s {
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.Quorum
	}
}
