package persistence

import (
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMongoDb connects a Mongo client. Callers are expected to Ping before use.
func NewMongoDb(host, port, user, password, name string) (*mongo.Client, error) {
	uri := mongoURI(host, port, user, password, name)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

func mongoURI(host, port, user, password, name string) string {
	u := &url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%s", host, port)}
	if user != "" {
		u.User = url.UserPassword(user, password)
		// credentials live in the admin database unless the app db says otherwise
		u.RawQuery = url.Values{"authSource": {"admin"}}.Encode()
	}
	if name != "" {
		u.Path = "/" + name
	}
	return u.String()
}
