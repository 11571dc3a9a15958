package backend

import (
	"errors"
	"fmt"

	"carteira/internal/config"
	"carteira/internal/storage/surrealdb"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         t,
		DataDir:      appConfig.DataDir,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SurrealDB: surrealdb.Config{
			Address:   appConfig.SurrealDBURL,
			Username:  appConfig.SurrealDBUser,
			Password:  appConfig.SurrealDBPass,
			Namespace: appConfig.SurrealDBNamespace,
			Database:  appConfig.SurrealDBDatabase,
		},
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case SurrealDBBackend:
		if c.SurrealDB.Address == "" {
			return errors.New("SurrealDB address is required for surrealdb backend")
		}
		if c.SurrealDB.Namespace == "" || c.SurrealDB.Database == "" {
			return errors.New("SurrealDB namespace and database are required for surrealdb backend")
		}
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
