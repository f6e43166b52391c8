package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client agrupa o driver e o nome do database alvo, para que repositórios
// abram sessions sem repetir configuração.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

func NewNeo4jClient(uri string, username string, password string, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: database,
	}, nil
}

// WriteSession abre uma session de escrita no database configurado.
func (c *Client) WriteSession(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
}

// ReadSession abre uma session de leitura no database configurado.
func (c *Client) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
}

func (c *Client) Close(ctx context.Context) error {
	return c.Driver.Close(ctx)
}

// IsConstraintViolation reports whether err is a uniqueness constraint
// failure, which indicates a mapping bug rather than an infrastructure issue.
func IsConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, "ConstraintValidationFailed") ||
			strings.Contains(neoErr.Code, "ConstraintViolation")
	}
	return false
}

// IsConnectivity reports whether err means the graph store is unreachable.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	return neo4j.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded)
}
