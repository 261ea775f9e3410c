package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintZone(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Type: config.DatabaseSQLite, DSN: filepath.Join(t.TempDir(), "z.db")})
	require.NoError(t, err)
	defer db.Close()

	owner, err := db.CreateUser(ctx, database.User{Username: "alice", PasswordHash: "x", PermTemplate: 2, Active: true})
	require.NoError(t, err)
	id, err := db.AddDomain(ctx, database.NewDomain{
		Name: "example.com", Type: "MASTER", OwnerID: owner,
		SOA: database.SOADefaults{NS1: "ns1.example.net", Hostmaster: "hostmaster.example.net", TTL: 3600},
	})
	require.NoError(t, err)
	_, err = db.AddRecord(ctx, database.Record{DomainID: id, Name: "www.example.com", Type: "A", Content: "192.0.2.1", TTL: 300})
	require.NoError(t, err)

	for _, arg := range []string{"example.com", strconv.FormatInt(id, 10)} {
		out := &bytes.Buffer{}
		require.NoError(t, printZone(ctx, db, arg, out), arg)
		assert.Contains(t, out.String(), "$ORIGIN example.com.")
		assert.Contains(t, out.String(), "www.example.com.")
		assert.Contains(t, out.String(), "192.0.2.1")
	}

	err = printZone(ctx, db, "missing.org", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
