package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_ConnString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  DB
		want string
	}{
		{
			name: "fields",
			cfg:  DB{Host: "db", Port: "5432", User: "lib", Password: "p@ss", NameDB: "circulation", SSLMode: "disable"},
			want: "postgres://lib:p%40ss@db:5432/circulation?sslmode=disable",
		},
		{
			name: "dsn wins",
			cfg:  DB{Host: "db", DSN: "postgres://u:p@other:6543/x"},
			want: "postgres://u:p@other:6543/x",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.cfg.ConnString())
		})
	}
}
