package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConnConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		config     string
		wantHost   string
		wantDBName string
	}{
		{name: "url", config: "postgres://u:p@db.internal:5432/grades?sslmode=disable", wantHost: "db.internal", wantDBName: "grades"},
		{name: "dsn", config: "user=u host=localhost dbname=rubrics sslmode=disable", wantHost: "localhost", wantDBName: "rubrics"},
		{name: "garbage", config: "not a dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			host, dbname := parseConnConfig(tt.config)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantDBName, dbname)
		})
	}
}
