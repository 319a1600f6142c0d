package persistence

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/molpadia/molpastudio/internal/config"
	"github.com/molpadia/molpastudio/internal/domain/repository"
)

// Repositories bundles the repositories of the configured backend.
type Repositories struct {
	Videos repository.VideoRepository
	Users  repository.UserRepository
	close  func() error
	ping   func(context.Context) error
}

// Ping checks the connection of SQL backends. DynamoDB is always reachable.
func (r *Repositories) Ping(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open the metadata backend named by cfg.DBBackend.
func Open(ctx context.Context, cfg *config.Config, sess *session.Session) (*Repositories, error) {
	var dialect Dialect
	switch cfg.DBBackend {
	case "dynamodb":
		if sess == nil {
			return nil, fmt.Errorf("dynamodb backend requires an AWS session")
		}
		return &Repositories{
			Videos: NewDynamoVideoRepository(sess, cfg.DynamoVideoTable),
			Users:  NewDynamoUserRepository(sess, cfg.DynamoUserTable),
		}, nil
	case "sqlite":
		dialect = SQLite
	case "postgres":
		dialect = Postgres
	case "mysql":
		dialect = MySQL
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	store, err := OpenSQL(ctx, dialect, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	return &Repositories{Videos: store.Videos(), Users: store.Users(), close: store.Close, ping: store.Ping}, nil
}
