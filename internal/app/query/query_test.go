package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

func TestBuilder_NumbersPlaceholders(t *testing.T) {
	b := NewBuilder("SELECT uuid FROM host WHERE workspace = ?", "ws-1")
	b.Where("ip_address = ?", "203.0.113.7")
	b.OrderBy("created_at").Paginate(50, 100)

	sql, args := b.SQL()
	assert.Equal(t, "SELECT uuid FROM host WHERE workspace = $1 AND (ip_address = $2) ORDER BY created_at LIMIT $3 OFFSET $4", sql)
	assert.Equal(t, []interface{}{"ws-1", "203.0.113.7", 50, 100}, args)
}

func TestBuilder_NoConditions(t *testing.T) {
	sql, args := NewBuilder("SELECT count(*) FROM domain").SQL()
	assert.Equal(t, "SELECT count(*) FROM domain", sql)
	assert.Empty(t, args)
}

func TestParseHost(t *testing.T) {
	ast, err := ParseHost(`ips:203.0.113.7,198.51.100.0/24 os:Linux tags:external`)
	require.NoError(t, err)
	require.Len(t, ast.IPs, 2)
	assert.False(t, ast.IPs[0].CIDR)
	assert.True(t, ast.IPs[1].CIDR)
	assert.Equal(t, []string{"Linux"}, ast.OS)
	assert.Equal(t, []string{"external"}, ast.Tags)
}

func TestParsePort_Ranges(t *testing.T) {
	ast, err := ParsePort("ports:80,443,8000-8100 protocols:tcp")
	require.NoError(t, err)
	require.Len(t, ast.Ports, 3)
	assert.Equal(t, PortRange{Start: 8000, End: 8100}, ast.Ports[2])
	assert.Equal(t, []string{"tcp"}, ast.Protocols)
}

func TestParsePort_InvalidRange(t *testing.T) {
	_, err := ParsePort("ports:90-80")
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.ClientInput))
}

func TestParse_UnknownColumn(t *testing.T) {
	_, err := ParseDomain("bogus:value")
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.ClientInput))
}

func TestParse_QuotedValue(t *testing.T) {
	ast, err := ParseService(`names:"exchange server",nginx`)
	require.NoError(t, err)
	assert.Equal(t, []string{"exchange server", "nginx"}, ast.Names)
}

func TestParseGlobal_CreatedAtRange(t *testing.T) {
	ast, err := ParseGlobal("createdAt:2024-01-01..2024-06-30")
	require.NoError(t, err)
	require.Len(t, ast.CreatedAt, 1)
	require.NotNil(t, ast.CreatedAt[0].After)
	require.NotNil(t, ast.CreatedAt[0].Before)
	assert.True(t, ast.CreatedAt[0].After.Before(*ast.CreatedAt[0].Before))
}

func TestParseGlobal_OpenRange(t *testing.T) {
	ast, err := ParseGlobal("createdAt:..2024-06-30")
	require.NoError(t, err)
	require.Len(t, ast.CreatedAt, 1)
	assert.Nil(t, ast.CreatedAt[0].After)
	require.NotNil(t, ast.CreatedAt[0].Before)
}

func TestHostAST_ApplyToQuery_BindsEveryValue(t *testing.T) {
	ast, err := ParseHost("ips:203.0.113.7 os:Linux,Windows")
	require.NoError(t, err)

	b := NewBuilder("SELECT uuid FROM host WHERE workspace = ?", "ws-1")
	ast.ApplyToQuery(GlobalAST{}, b)

	sql, args := b.SQL()
	assert.Contains(t, sql, "host.ip_address = $2")
	assert.Contains(t, sql, "host.os_type = $3 OR host.os_type = $4")
	assert.NotContains(t, sql, "203.0.113.7", "user values must never be interpolated")
	assert.Equal(t, []interface{}{"ws-1", "203.0.113.7", "Linux", "Windows"}, args)
}

func TestPortAST_ApplyToQuery_HostSubquery(t *testing.T) {
	ast, err := ParsePort("ips:198.51.100.0/24 ports:443")
	require.NoError(t, err)

	b := NewBuilder("SELECT uuid FROM port WHERE workspace = ?", "ws-1")
	ast.ApplyToQuery(GlobalAST{}, b)

	sql, args := b.SQL()
	assert.Contains(t, sql, "port.number = $2")
	assert.Contains(t, sql, "port.host IN (SELECT host.uuid FROM host WHERE host.ip_address::inet <<= $3::inet)")
	assert.Len(t, args, 3)
}

func TestHttpServiceAST_ApplyToQuery_Booleans(t *testing.T) {
	ast, err := ParseHttpService("tls:true sni:false paths:/admin")
	require.NoError(t, err)

	b := NewBuilder("SELECT uuid FROM http_service WHERE workspace = ?", "ws-1")
	ast.ApplyToQuery(GlobalAST{}, b)

	sql, args := b.SQL()
	assert.Contains(t, sql, "http_service.tls = $3")
	assert.Contains(t, sql, "http_service.sni_required = $4")
	assert.Equal(t, []interface{}{"ws-1", "/admin", true, false}, args)
}
