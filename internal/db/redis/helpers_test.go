package redis

import (
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cardex/internal/db"
)

// mockStore returns a Store backed by a gomock rueidis client.
func mockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return newStore(c), c
}

// commandIs matches any command whose name is name.
func commandIs(name string) gomock.Matcher {
	return mock.MatchFn(func(cmd []string) bool { return len(cmd) > 0 && cmd[0] == name })
}

func dbOp(err error) string {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return dbErr.Op
	}
	return ""
}
