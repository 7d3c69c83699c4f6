package setup

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DBConfig
		want    string
		wantErr bool
	}{
		{
			name: "explicit dsn wins",
			cfg:  DBConfig{Driver: DriverMySQL, DSN: "custom"},
			want: "custom",
		},
		{
			name: "mysql with defaults",
			cfg:  DBConfig{Driver: DriverMySQL, User: "root", Password: "pw", Name: "ideas"},
			want: "root:pw@tcp(127.0.0.1:3306)/ideas?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "postgres",
			cfg:  DBConfig{Driver: DriverPostgres, User: "pg", Password: "pw", Host: "db", Port: "6543", Name: "ideas"},
			want: "host=db user=pg password=pw dbname=ideas port=6543 sslmode=disable TimeZone=UTC",
		},
		{
			name: "sqlite default file",
			cfg:  DBConfig{Driver: DriverSQLite},
			want: "idea-board.db",
		},
		{
			name:    "mysql missing user",
			cfg:     DBConfig{Driver: DriverMySQL, Name: "ideas"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     DBConfig{Driver: "oracle"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitDBAndMigrate_SQLite(t *testing.T) {
	db, err := InitDB(DBConfig{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, MigrateDB(db))
	for _, table := range []string{"users", "ideas", "idea_tags", "idea_votes", "idea_comments", "idea_events"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestMigrateDB_NilDB(t *testing.T) {
	assert.Error(t, MigrateDB(nil))
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr() // Close 之后不能再调用 Addr
	client, err := InitRedis(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = InitRedis(addr, "", 0)
	assert.Error(t, err)
}
